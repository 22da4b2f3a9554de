// Package tone plays the substitution notification tone of an SMS override.
package tone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/oshokin/contact-ringer/internal/logger"
)

// Player plays a tone reference; nil selects the built-in cue.
type Player interface {
	Play(ctx context.Context, ringtone *string) error
}

const (
	// cueSampleRate is the sample rate of the synthesized cue.
	cueSampleRate = 16000
	// fileTimeout bounds the playback of a tone file.
	fileTimeout = 6 * time.Second
	// cueGap is the silence between the cue notes.
	cueGap = 22 * time.Millisecond
)

// errEmptyCue is returned when there is nothing to play.
var errEmptyCue = errors.New("empty cue")

// note is one sine tone of the cue.
type note struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

// messageCuePCM is the built-in two-note message cue.
//
//nolint:gochecknoglobals // Precomputed once, read-only.
var messageCuePCM = synthesize([]note{
	{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.25},
	{frequencyHz: 1319, duration: 140 * time.Millisecond, volume: 0.25},
})

// PulsePlayer plays tone files with pw-play and the built-in cue on a PulseAudio stream.
type PulsePlayer struct {
	// command is the file player executable.
	command string
}

// NewPulsePlayer creates a player using pw-play for tone files.
func NewPulsePlayer() *PulsePlayer {
	return &PulsePlayer{command: "pw-play"}
}

// Play plays the referenced file, falling back to the built-in cue when the
// reference is nil, not a local file, or fails to play.
func (p *PulsePlayer) Play(ctx context.Context, ringtone *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if path := localPath(ringtone); path != "" {
		err := p.playFile(ctx, path)
		if err == nil {
			return nil
		}

		logger.WarnKV(ctx, "Tone file failed, playing built-in cue", "path", path, "error", err)
	}

	return playPCM(messageCuePCM)
}

// playFile plays a tone file through the notification media role.
func (p *PulsePlayer) playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat tone file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, fileTimeout)
	defer cancel()

	//nolint:gosec // The path comes from the user's own contact settings.
	cmd := exec.CommandContext(ctx, p.command, "--media-role", "Notification", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play tone file %q: %w", path, err)
	}

	return nil
}

// LogPlayer only logs what would be played. It backs the simulated device.
type LogPlayer struct{}

// Play implements Player.
func (LogPlayer) Play(ctx context.Context, ringtone *string) error {
	ref := "built-in cue"
	if ringtone != nil {
		ref = *ringtone
	}

	logger.InfoKV(ctx, "Playing substitution tone", "tone", ref)

	return nil
}

// localPath resolves a file reference ("/x", "~/x", "file:///x") to a path.
func localPath(ringtone *string) string {
	if ringtone == nil {
		return ""
	}

	raw := strings.TrimSpace(*ringtone)

	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "file://"):
		return filepath.Clean(strings.TrimPrefix(raw, "file://"))
	case strings.HasPrefix(raw, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		return filepath.Join(home, strings.TrimPrefix(raw, "~/"))
	case filepath.IsAbs(raw):
		return filepath.Clean(raw)
	default:
		return ""
	}
}

// playPCM plays mono 16-bit samples on a short-lived PulseAudio stream.
func playPCM(samples []int16) error {
	if len(samples) == 0 {
		return errEmptyCue
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("contact-ringer"),
		pulse.ClientApplicationIconName("audio-volume-high"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n

		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}

		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("contact-ringer message tone"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()

	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}

	return nil
}

// synthesize renders the notes with a short gap between them.
func synthesize(notes []note) []int16 {
	gap := samplesFor(cueGap)
	pcm := make([]int16, 0)

	for i, n := range notes {
		pcm = append(pcm, sine(n)...)
		if i < len(notes)-1 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}

	return pcm
}

// sine renders one note with a 5ms attack and release envelope.
func sine(n note) []int16 {
	count := samplesFor(n.duration)
	if count <= 0 || n.frequencyHz <= 0 || n.volume <= 0 {
		return nil
	}

	ramp := min(max(count/10, 1), cueSampleRate/200)

	pcm := make([]int16, count)
	for i := range count {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}

		if tail := count - i - 1; tail < ramp {
			envelope = min(envelope, float64(tail)/float64(ramp))
		}

		t := float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(2*math.Pi*n.frequencyHz*t) * n.volume * envelope * math.MaxInt16))
	}

	return pcm
}

// samplesFor converts a duration into a sample count at the cue rate.
func samplesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}

	return int(math.Round(d.Seconds() * cueSampleRate))
}
