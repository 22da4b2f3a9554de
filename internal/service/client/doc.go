// Package client implements the ringer-ctl subcommands.
//
// Every command loads the settings, connects to ringer-server and prints the
// result in a human-readable form.
package client
