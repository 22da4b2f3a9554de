package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, without the leading "v".
	Version = "0.1.0-dev"
	// Commit is the git revision the binary was built from.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns the release tag.
func Short() string {
	return Version
}

// Full describes the build for the version subcommand and the startup log.
func Full() string {
	return fmt.Sprintf("contact-ringer %s (commit %s, built %s, %s %s/%s)",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
