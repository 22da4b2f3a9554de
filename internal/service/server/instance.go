package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another daemon process owns the device.
var ErrAlreadyRunning = errors.New("another ringer-server is already running")

// processLister lists running processes.
type processLister func() ([]ps.Process, error)

// ensureSingleInstance fails when another process runs the same executable.
// Two daemons would capture each other's overrides as baselines.
func ensureSingleInstance(executable string, list processLister) error {
	processList, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, process.Pid())
	}

	return nil
}

// currentExecutable returns the base name of the running binary.
func currentExecutable() string {
	path, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}

	return filepath.Base(path)
}
