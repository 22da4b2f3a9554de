package audio

import (
	"context"
	"errors"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// Port exposes the audio and interruption-policy controls of the device.
type Port interface {
	RingerMode(ctx context.Context) (ringer.RingerMode, error)
	SetRingerMode(ctx context.Context, mode ringer.RingerMode) error
	StreamVolume(ctx context.Context, stream ringer.Stream) (int, error)
	SetStreamVolume(ctx context.Context, stream ringer.Stream, index int, flags ringer.VolumeFlags) error
	MaxStreamVolume(ctx context.Context, stream ringer.Stream) (int, error)
	DefaultRingtone(ctx context.Context) (*string, error)
	SetDefaultRingtone(ctx context.Context, ringtone *string) error
	// HasPolicyAccess reports whether the interruption filter may be written.
	HasPolicyAccess(ctx context.Context) bool
	InterruptionFilter(ctx context.Context) (ringer.InterruptionFilter, error)
	SetInterruptionFilter(ctx context.Context, filter ringer.InterruptionFilter) error
}

var (
	// ErrPolicyAccessDenied is returned when the interruption filter is written without policy access.
	ErrPolicyAccessDenied = errors.New("interruption policy access not granted")
	// ErrInvalidRingtone is returned when a ringtone reference cannot be resolved.
	ErrInvalidRingtone = errors.New("invalid ringtone reference")
	// ErrVolumeOutOfRange is returned when a volume index is outside the stream range.
	ErrVolumeOutOfRange = errors.New("volume index out of range")
	// ErrUnknownStream is returned for a stream the port does not expose.
	ErrUnknownStream = errors.New("unknown stream")
	// ErrTimeout is returned by Guard when a port call does not finish in time.
	ErrTimeout = errors.New("audio port call timed out")
)

// Streams lists the volume streams tracked by the override engine, in restore order.
func Streams() []ringer.Stream {
	return []ringer.Stream{ringer.StreamRing, ringer.StreamNotification, ringer.StreamSystem}
}
