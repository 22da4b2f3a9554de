// Package audio defines the audio/policy port the override engine drives and
// ships its implementations.
//
// Memory simulates a device and is used by tests and by the "memory" backend.
// Pulse maps the ringer state onto a PulseAudio sink. Guard wraps any port so
// that a hung call returns ErrTimeout instead of blocking the engine.
package audio
