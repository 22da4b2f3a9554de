package ringer

import (
	"fmt"
	"math"
)

// RingerMode is the device ringer mode.
type RingerMode int

const (
	// RingerModeSilent mutes ringing and vibration.
	RingerModeSilent RingerMode = iota
	// RingerModeVibrate vibrates without an audible ring.
	RingerModeVibrate
	// RingerModeNormal rings audibly.
	RingerModeNormal
)

// String implements fmt.Stringer.
func (m RingerMode) String() string {
	switch m {
	case RingerModeSilent:
		return "silent"
	case RingerModeVibrate:
		return "vibrate"
	case RingerModeNormal:
		return "normal"
	default:
		return fmt.Sprintf("ringer_mode(%d)", int(m))
	}
}

// Stream identifies a volume stream of the device.
type Stream int

const (
	// StreamRing is the ringtone stream.
	StreamRing Stream = iota + 1
	// StreamNotification is the notification stream.
	StreamNotification
	// StreamSystem is the system sounds stream.
	StreamSystem
)

// String implements fmt.Stringer.
func (s Stream) String() string {
	switch s {
	case StreamRing:
		return "ring"
	case StreamNotification:
		return "notification"
	case StreamSystem:
		return "system"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// VolumeFlags are hints passed along with a volume write.
type VolumeFlags uint8

const (
	// FlagShowUI asks the platform to surface its volume UI.
	FlagShowUI VolumeFlags = 1 << iota
	// FlagPlaySound asks the platform to play its confirmation tone.
	FlagPlaySound
)

// InterruptionFilter is the do-not-disturb level.
type InterruptionFilter int

const (
	// FilterUnknown means the platform could not report the filter.
	FilterUnknown InterruptionFilter = iota
	// FilterAll lets every interruption through (DND off).
	FilterAll
	// FilterPriority lets only priority interruptions through.
	FilterPriority
	// FilterNone blocks all interruptions.
	FilterNone
	// FilterAlarms lets only alarms through.
	FilterAlarms
)

// String implements fmt.Stringer.
func (f InterruptionFilter) String() string {
	switch f {
	case FilterUnknown:
		return "unknown"
	case FilterAll:
		return "all"
	case FilterPriority:
		return "priority"
	case FilterNone:
		return "none"
	case FilterAlarms:
		return "alarms"
	default:
		return fmt.Sprintf("filter(%d)", int(f))
	}
}

// AudioBaseline is the audio configuration captured before the first override of a session.
type AudioBaseline struct {
	// RingerMode is the ringer mode before the override.
	RingerMode RingerMode
	// RingVolume is the ring stream index.
	RingVolume int
	// NotificationVolume is the notification stream index.
	NotificationVolume int
	// SystemVolume is the system stream index.
	SystemVolume int
	// InterruptionFilter is the DND level.
	InterruptionFilter InterruptionFilter
	// Ringtone is the default ringtone reference, nil when none is set.
	Ringtone *string
}

// Clone returns a deep copy of the baseline.
func (b *AudioBaseline) Clone() *AudioBaseline {
	if b == nil {
		return nil
	}

	cloned := *b
	if b.Ringtone != nil {
		ringtone := *b.Ringtone
		cloned.Ringtone = &ringtone
	}

	return &cloned
}

// ScaleVolume converts a 0..100 percentage into a stream index, rounding half away from zero.
func ScaleVolume(maxVolume, percent int) int {
	if maxVolume <= 0 || percent <= 0 {
		return 0
	}

	if percent >= 100 {
		return maxVolume
	}

	return int(math.Round(float64(maxVolume) * float64(percent) / 100))
}
