// Package server runs the ringer-server daemon.
//
// Run loads the settings, opens the contact directory and the call-state
// record, connects the configured audio backend, and wires the override
// engine, both correlators and the event dispatcher behind the gRPC API.
package server
