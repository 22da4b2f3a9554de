package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

const (
	// pulseVolumeNorm is PA_VOLUME_NORM, 100% on a sink.
	pulseVolumeNorm = 0x10000
	// pulseUndefinedIndex makes the server look a sink up by name.
	pulseUndefinedIndex = 0xFFFFFFFF
	// pulseDefaultSink is the server alias of the default sink.
	pulseDefaultSink = "@DEFAULT_SINK@"
	// DefaultPulseSteps is the number of ring volume steps exposed for a sink.
	DefaultPulseSteps = 15
)

// PulseOptions configures a PulseAudio-backed port.
type PulseOptions struct {
	// Sink is the sink name, empty for the default sink.
	Sink string
	// Steps is the ring stream maximum index, DefaultPulseSteps when zero.
	Steps int
	// DefaultRingtone is the initial ringtone reference reported by the port.
	DefaultRingtone string
}

// Pulse maps the ring stream and the ringer mode onto a PulseAudio sink.
//
// Ring volume is the sink volume split into Steps indexes, Silent and Vibrate
// mute the sink, Normal unmutes it. PulseAudio has no notification or system
// stream, no ringtone setting and no do-not-disturb policy, so those fields live
// in a simulated device and policy access is never granted.
type Pulse struct {
	// client is the connection to the PulseAudio server.
	client *pulse.Client
	// sink is the sink name sent with every request.
	sink string
	// steps is the ring stream maximum index.
	steps int
	// mu serializes requests on the client.
	mu sync.Mutex
	// rest holds the fields PulseAudio cannot represent.
	rest *Memory
}

// NewPulse connects to the PulseAudio server.
func NewPulse(opts PulseOptions) (*Pulse, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("contact-ringer"),
		pulse.ClientApplicationIconName("audio-volume-high"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	sink := strings.TrimSpace(opts.Sink)
	if sink == "" {
		sink = pulseDefaultSink
	}

	steps := opts.Steps
	if steps <= 0 {
		steps = DefaultPulseSteps
	}

	device := DefaultDevice()
	device.PolicyAccess = false
	device.MaxVolumes[ringer.StreamRing] = steps

	if opts.DefaultRingtone != "" {
		ringtone := opts.DefaultRingtone
		device.Ringtone = &ringtone
	}

	return &Pulse{
		client: client,
		sink:   sink,
		steps:  steps,
		rest:   NewMemory(device),
	}, nil
}

// Close releases the server connection.
func (p *Pulse) Close() {
	p.client.Close()
}

// sinkInfo fetches the current sink state.
func (p *Pulse) sinkInfo() (*pulseproto.GetSinkInfoReply, error) {
	var info pulseproto.GetSinkInfoReply

	request := &pulseproto.GetSinkInfo{
		SinkIndex: pulseUndefinedIndex,
		SinkName:  p.sink,
	}
	if err := p.client.RawRequest(request, &info); err != nil {
		return nil, fmt.Errorf("get sink %q: %w", p.sink, err)
	}

	return &info, nil
}

// setMute mutes or unmutes the sink.
func (p *Pulse) setMute(mute bool) error {
	request := &pulseproto.SetSinkMute{
		SinkIndex: pulseUndefinedIndex,
		SinkName:  p.sink,
		Mute:      mute,
	}
	if err := p.client.RawRequest(request, nil); err != nil {
		return fmt.Errorf("set sink %q mute: %w", p.sink, err)
	}

	return nil
}

// RingerMode implements Port.
func (p *Pulse) RingerMode(ctx context.Context) (ringer.RingerMode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := p.sinkInfo()
	if err != nil {
		return 0, err
	}

	if !info.Mute {
		return ringer.RingerModeNormal, nil
	}

	// A muted sink is Vibrate only when Vibrate was the last mode set.
	last, err := p.rest.RingerMode(ctx)
	if err == nil && last == ringer.RingerModeVibrate {
		return ringer.RingerModeVibrate, nil
	}

	return ringer.RingerModeSilent, nil
}

// SetRingerMode implements Port.
func (p *Pulse) SetRingerMode(ctx context.Context, mode ringer.RingerMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.setMute(mode != ringer.RingerModeNormal); err != nil {
		return err
	}

	return p.rest.SetRingerMode(ctx, mode)
}

// StreamVolume implements Port.
func (p *Pulse) StreamVolume(ctx context.Context, stream ringer.Stream) (int, error) {
	if stream != ringer.StreamRing {
		return p.rest.StreamVolume(ctx, stream)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := p.sinkInfo()
	if err != nil {
		return 0, err
	}

	return pulseToIndex(info.ChannelVolumes, p.steps), nil
}

// SetStreamVolume implements Port. Flags have no PulseAudio equivalent.
func (p *Pulse) SetStreamVolume(ctx context.Context, stream ringer.Stream, index int, flags ringer.VolumeFlags) error {
	if stream != ringer.StreamRing {
		return p.rest.SetStreamVolume(ctx, stream, index, flags)
	}

	if index < 0 || index > p.steps {
		return fmt.Errorf("%w: %s index %d not in [0, %d]", ErrVolumeOutOfRange, stream, index, p.steps)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := p.sinkInfo()
	if err != nil {
		return err
	}

	channels := len(info.ChannelVolumes)
	if channels == 0 {
		channels = 1
	}

	volumes := make([]uint32, channels)
	for i := range volumes {
		volumes[i] = indexToPulse(index, p.steps)
	}

	request := &pulseproto.SetSinkVolume{
		SinkIndex:      pulseUndefinedIndex,
		SinkName:       p.sink,
		ChannelVolumes: volumes,
	}
	if err := p.client.RawRequest(request, nil); err != nil {
		return fmt.Errorf("set sink %q volume: %w", p.sink, err)
	}

	return nil
}

// MaxStreamVolume implements Port.
func (p *Pulse) MaxStreamVolume(ctx context.Context, stream ringer.Stream) (int, error) {
	return p.rest.MaxStreamVolume(ctx, stream)
}

// DefaultRingtone implements Port.
func (p *Pulse) DefaultRingtone(ctx context.Context) (*string, error) {
	return p.rest.DefaultRingtone(ctx)
}

// SetDefaultRingtone implements Port.
func (p *Pulse) SetDefaultRingtone(ctx context.Context, ringtone *string) error {
	return p.rest.SetDefaultRingtone(ctx, ringtone)
}

// HasPolicyAccess implements Port. PulseAudio has no do-not-disturb policy.
func (p *Pulse) HasPolicyAccess(context.Context) bool {
	return false
}

// InterruptionFilter implements Port.
func (p *Pulse) InterruptionFilter(ctx context.Context) (ringer.InterruptionFilter, error) {
	return p.rest.InterruptionFilter(ctx)
}

// SetInterruptionFilter implements Port.
func (p *Pulse) SetInterruptionFilter(context.Context, ringer.InterruptionFilter) error {
	return ErrPolicyAccessDenied
}

// pulseToIndex converts per-channel sink volumes into a stream index.
func pulseToIndex(volumes []uint32, steps int) int {
	if len(volumes) == 0 || steps <= 0 {
		return 0
	}

	var total uint64
	for _, v := range volumes {
		total += uint64(v)
	}

	avg := total / uint64(len(volumes))

	index := int((avg*uint64(steps) + pulseVolumeNorm/2) / pulseVolumeNorm)
	if index > steps {
		return steps
	}

	return index
}

// indexToPulse converts a stream index into a sink channel volume.
func indexToPulse(index, steps int) uint32 {
	if steps <= 0 || index <= 0 {
		return 0
	}

	if index >= steps {
		return pulseVolumeNorm
	}

	return uint32((uint64(index)*pulseVolumeNorm + uint64(steps)/2) / uint64(steps))
}
