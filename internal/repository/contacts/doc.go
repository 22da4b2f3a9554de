// Package contacts implements the contact directory backed by BadgerDB.
//
// Each designated contact is one key ("contact/<name>") holding a small JSON
// record with its number and override policy. Records that fail to decode are
// served as minimal contacts so a single bad entry never hides a caller.
package contacts
