// Package engine implements the override/restore engine.
//
// The engine owns the only copy of the audio baseline. Apply captures it on
// the first override of a session and then rewrites the device according to
// a contact's policy; Reset writes the baseline back field by field and always
// returns the engine to Idle, even when every write fails. All operations,
// including timers armed by ScheduleReset, run under one mutex, so no two of
// them ever observe the baseline at the same time.
package engine
