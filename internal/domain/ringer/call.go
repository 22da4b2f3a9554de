package ringer

import (
	"fmt"
	"strings"
)

// CallPhase is the telephony phase of the current call.
type CallPhase string

const (
	// CallPhaseIdle means no call is in progress.
	CallPhaseIdle CallPhase = "idle"
	// CallPhaseRinging means an incoming call is ringing.
	CallPhaseRinging CallPhase = "ringing"
	// CallPhaseOffhook means a call was answered or dialed.
	CallPhaseOffhook CallPhase = "offhook"
)

// ParseCallPhase accepts the phase names in any case, including the
// telephony spellings "RINGING", "OFFHOOK" and "IDLE".
func ParseCallPhase(s string) (CallPhase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return CallPhaseIdle, nil
	case "ringing":
		return CallPhaseRinging, nil
	case "offhook", "off_hook", "off-hook":
		return CallPhaseOffhook, nil
	default:
		return "", fmt.Errorf("unknown call phase %q", s)
	}
}

// CallState is the durable state of the call correlator.
type CallState struct {
	// Phase is the last phase the correlator accepted.
	Phase CallPhase
	// Tracking is true while the call belongs to a designated contact.
	Tracking bool
}

// NeutralCallState is the state with no call in progress.
func NeutralCallState() CallState {
	return CallState{Phase: CallPhaseIdle}
}
