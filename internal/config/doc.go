// Package config defines the settings shared by ringer-server and ringer-ctl
// and provides helpers to load, validate and save them in YAML format.
//
// Besides the control-API address, the settings select the audio backend,
// the storage locations of the contact directory and the call-state record,
// and the timings used by the notification correlator.
package config
