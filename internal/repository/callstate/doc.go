// Package callstate persists the call correlator's state so a restarted
// process does not lose track of a call that is ringing or in progress.
//
// The FileRepository stores a two-field msgpack record (phase, tracking flag)
// and exposes a Repository interface that the call correlator depends on.
package callstate
