// Package ringer contains core domain types for the contact override logic.
//
// It defines Contact (a designated caller and its override policy), the audio
// vocabulary shared by the engine and the audio ports (RingerMode, Stream,
// InterruptionFilter, AudioBaseline), the call phases seen by the telephony
// correlator, and the phone-number normalization used to match callers.
package ringer
