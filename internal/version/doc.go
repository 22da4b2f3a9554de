// Package version carries the build metadata of ringer-server and ringer-ctl.
//
// Version, Commit and BuildTime are set through -ldflags "-X" at release time.
package version
