// Package call correlates telephony phase changes with the override engine.
//
// A ringing call from a designated contact applies the contact's policy and
// starts tracking; the call returning to idle restores the device. The phase
// and tracking flag are persisted after every event so a restarted daemon still
// restores a call it started overriding.
package call
