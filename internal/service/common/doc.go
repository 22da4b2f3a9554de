// Package common holds helpers shared by several services.
//
// It provides the ringer-server gRPC client wrapper with call timeouts and a
// helper detecting the current system actor (hostname/username) that is sent
// along with mutating requests for the server's audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
