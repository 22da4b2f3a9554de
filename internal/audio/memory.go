package audio

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// Op names a write operation recorded by Memory.
type Op string

const (
	OpSetRingerMode         Op = "set_ringer_mode"
	OpSetStreamVolume       Op = "set_stream_volume"
	OpSetDefaultRingtone    Op = "set_default_ringtone"
	OpSetInterruptionFilter Op = "set_interruption_filter"
	OpRingerMode            Op = "ringer_mode"
	OpStreamVolume          Op = "stream_volume"
	OpDefaultRingtone       Op = "default_ringtone"
	OpInterruptionFilter    Op = "interruption_filter"
)

// Write is one mutation applied to a Memory device.
type Write struct {
	Op     Op
	Stream ringer.Stream
	Value  string
	Flags  ringer.VolumeFlags
}

// Device is the full state of a simulated device.
type Device struct {
	RingerMode         ringer.RingerMode
	Volumes            map[ringer.Stream]int
	MaxVolumes         map[ringer.Stream]int
	Ringtone           *string
	InterruptionFilter ringer.InterruptionFilter
	PolicyAccess       bool
}

// DefaultDevice returns a phone-like device: normal ringer, DND off, 7-step ring stream.
func DefaultDevice() Device {
	return Device{
		RingerMode: ringer.RingerModeNormal,
		Volumes: map[ringer.Stream]int{
			ringer.StreamRing:         5,
			ringer.StreamNotification: 5,
			ringer.StreamSystem:       5,
		},
		MaxVolumes: map[ringer.Stream]int{
			ringer.StreamRing:         7,
			ringer.StreamNotification: 7,
			ringer.StreamSystem:       7,
		},
		InterruptionFilter: ringer.FilterAll,
		PolicyAccess:       true,
	}
}

// clone returns a deep copy of the device.
func (d Device) clone() Device {
	cloned := d
	cloned.Volumes = make(map[ringer.Stream]int, len(d.Volumes))
	cloned.MaxVolumes = make(map[ringer.Stream]int, len(d.MaxVolumes))

	for k, v := range d.Volumes {
		cloned.Volumes[k] = v
	}

	for k, v := range d.MaxVolumes {
		cloned.MaxVolumes[k] = v
	}

	if d.Ringtone != nil {
		ringtone := *d.Ringtone
		cloned.Ringtone = &ringtone
	}

	return cloned
}

// Memory is an in-memory Port. It is safe for concurrent use.
type Memory struct {
	// mu protects all fields below.
	mu sync.Mutex
	// device is the current simulated state.
	device Device
	// ringtones, when non-nil, is the set of resolvable ringtone references.
	ringtones map[string]struct{}
	// failures makes the given operations fail with the stored error.
	failures map[Op]error
	// journal records every successful write.
	journal []Write
}

// MemoryOption configures a Memory port.
type MemoryOption func(*Memory)

// WithRingtones restricts resolvable ringtone references to the given set.
func WithRingtones(refs ...string) MemoryOption {
	return func(m *Memory) {
		m.ringtones = make(map[string]struct{}, len(refs))
		for _, ref := range refs {
			m.ringtones[ref] = struct{}{}
		}
	}
}

// NewMemory creates a simulated device in the given state.
func NewMemory(device Device, opts ...MemoryOption) *Memory {
	m := &Memory{
		device:   device.clone(),
		failures: make(map[Op]error),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// FailOn makes op fail with err until cleared with a nil err.
func (m *Memory) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}

	m.failures[op] = err
}

// SetPolicyAccess grants or revokes interruption policy access.
func (m *Memory) SetPolicyAccess(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.device.PolicyAccess = granted
}

// Snapshot returns a copy of the current device state.
func (m *Memory) Snapshot() Device {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.device.clone()
}

// Journal returns the writes applied so far.
func (m *Memory) Journal() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Write(nil), m.journal...)
}

// ResetJournal forgets the recorded writes.
func (m *Memory) ResetJournal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.journal = nil
}

// RingerMode implements Port.
func (m *Memory) RingerMode(_ context.Context) (ringer.RingerMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpRingerMode]; err != nil {
		return 0, err
	}

	return m.device.RingerMode, nil
}

// SetRingerMode implements Port.
func (m *Memory) SetRingerMode(_ context.Context, mode ringer.RingerMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpSetRingerMode]; err != nil {
		return err
	}

	m.device.RingerMode = mode
	m.journal = append(m.journal, Write{Op: OpSetRingerMode, Value: mode.String()})

	return nil
}

// StreamVolume implements Port.
func (m *Memory) StreamVolume(_ context.Context, stream ringer.Stream) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpStreamVolume]; err != nil {
		return 0, err
	}

	volume, ok := m.device.Volumes[stream]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}

	return volume, nil
}

// SetStreamVolume implements Port.
func (m *Memory) SetStreamVolume(_ context.Context, stream ringer.Stream, index int, flags ringer.VolumeFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpSetStreamVolume]; err != nil {
		return err
	}

	maxVolume, ok := m.device.MaxVolumes[stream]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}

	if index < 0 || index > maxVolume {
		return fmt.Errorf("%w: %s index %d not in [0, %d]", ErrVolumeOutOfRange, stream, index, maxVolume)
	}

	m.device.Volumes[stream] = index
	m.journal = append(m.journal, Write{
		Op:     OpSetStreamVolume,
		Stream: stream,
		Value:  strconv.Itoa(index),
		Flags:  flags,
	})

	return nil
}

// MaxStreamVolume implements Port.
func (m *Memory) MaxStreamVolume(_ context.Context, stream ringer.Stream) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxVolume, ok := m.device.MaxVolumes[stream]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}

	return maxVolume, nil
}

// DefaultRingtone implements Port.
func (m *Memory) DefaultRingtone(_ context.Context) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpDefaultRingtone]; err != nil {
		return nil, err
	}

	if m.device.Ringtone == nil {
		return nil, nil
	}

	ringtone := *m.device.Ringtone

	return &ringtone, nil
}

// SetDefaultRingtone implements Port.
func (m *Memory) SetDefaultRingtone(_ context.Context, ringtone *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpSetDefaultRingtone]; err != nil {
		return err
	}

	if ringtone == nil {
		m.device.Ringtone = nil
		m.journal = append(m.journal, Write{Op: OpSetDefaultRingtone})

		return nil
	}

	if m.ringtones != nil {
		if _, ok := m.ringtones[*ringtone]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidRingtone, *ringtone)
		}
	}

	value := *ringtone
	m.device.Ringtone = &value
	m.journal = append(m.journal, Write{Op: OpSetDefaultRingtone, Value: value})

	return nil
}

// HasPolicyAccess implements Port.
func (m *Memory) HasPolicyAccess(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.device.PolicyAccess
}

// InterruptionFilter implements Port.
func (m *Memory) InterruptionFilter(_ context.Context) (ringer.InterruptionFilter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[OpInterruptionFilter]; err != nil {
		return ringer.FilterUnknown, err
	}

	return m.device.InterruptionFilter, nil
}

// SetInterruptionFilter implements Port.
func (m *Memory) SetInterruptionFilter(_ context.Context, filter ringer.InterruptionFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.device.PolicyAccess {
		return ErrPolicyAccessDenied
	}

	if err := m.failures[OpSetInterruptionFilter]; err != nil {
		return err
	}

	m.device.InterruptionFilter = filter
	m.journal = append(m.journal, Write{Op: OpSetInterruptionFilter, Value: filter.String()})

	return nil
}
