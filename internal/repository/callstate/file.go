package callstate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// Repository defines persistence operations for the call state.
type Repository interface {
	Load(ctx context.Context) (ringer.CallState, error)
	Save(ctx context.Context, state ringer.CallState) error
}

// schemaVersion is written with every record.
const schemaVersion = 1

// record is the on-disk schema.
type record struct {
	Version  int    `msgpack:"v"`
	Phase    string `msgpack:"phase"`
	Tracking bool   `msgpack:"tracking"`
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("call state not found")
	// ErrUnsupportedVersion is returned for a record written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported call state version")
)

// FileRepository persists the call state to a msgpack file on disk.
type FileRepository struct {
	// path is the filesystem location of the state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes the given path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the state from disk.
func (r *FileRepository) Load(_ context.Context) (ringer.CallState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ringer.NeutralCallState(), ErrNotFound
		}

		return ringer.NeutralCallState(), fmt.Errorf("read call state file: %w", err)
	}

	var rec record
	if err = msgpack.Unmarshal(contents, &rec); err != nil {
		return ringer.NeutralCallState(), fmt.Errorf("decode call state file: %w", err)
	}

	if rec.Version > schemaVersion {
		return ringer.NeutralCallState(), fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
	}

	phase, err := ringer.ParseCallPhase(rec.Phase)
	if err != nil {
		return ringer.NeutralCallState(), fmt.Errorf("decode call state file: %w", err)
	}

	return ringer.CallState{Phase: phase, Tracking: rec.Tracking}, nil
}

// Save writes the state to disk, replacing the file atomically.
func (r *FileRepository) Save(_ context.Context, state ringer.CallState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := msgpack.Marshal(&record{
		Version:  schemaVersion,
		Phase:    string(state.Phase),
		Tracking: state.Tracking,
	})
	if err != nil {
		return fmt.Errorf("encode call state: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write call state file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace call state file: %w", err)
	}

	return nil
}
