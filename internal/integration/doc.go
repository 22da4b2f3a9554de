// Package integration runs ringer-server end to end and drives it through the gRPC client.
package integration
