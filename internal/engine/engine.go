package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/contact-ringer/internal/audio"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/logger"
)

// SessionState is the lifecycle state of the override session.
type SessionState string

const (
	// SessionIdle holds no baseline.
	SessionIdle SessionState = "idle"
	// SessionActive holds a baseline and an applied override.
	SessionActive SessionState = "active"
	// SessionResetting is restoring the baseline.
	SessionResetting SessionState = "resetting"
)

// ErrNilContact is returned by Apply without a contact.
var ErrNilContact = errors.New("contact is required")

// Status is a snapshot of the engine.
type Status struct {
	// State is the session state.
	State SessionState
	// SessionID identifies the active session, empty when idle.
	SessionID string
	// Since is when the session started, zero when idle.
	Since time.Time
	// Baseline is the captured configuration, nil when idle.
	Baseline *ringer.AudioBaseline
	// Contact is the contact applied last in this session.
	Contact *ringer.Contact
	// PendingResets counts armed ScheduleReset timers.
	PendingResets int
}

// pendingReset is a timer armed by ScheduleReset.
type pendingReset struct {
	timer Timer
	// generation is the session the timer was armed in.
	generation uint64
}

// Engine captures, overrides and restores the device audio configuration.
type Engine struct {
	// port is the device being driven.
	port audio.Port
	// scheduler arms delayed resets.
	scheduler Scheduler
	// now returns the current time.
	now func() time.Time

	// mu serializes every operation below.
	mu sync.Mutex
	// state is the session state.
	state SessionState
	// baseline is non-nil exactly when state is not idle.
	baseline *ringer.AudioBaseline
	// sessionID identifies the current session.
	sessionID uuid.UUID
	// since is when the current session started.
	since time.Time
	// contact is the contact applied last.
	contact *ringer.Contact
	// ringtoneChanged is set when the session wrote the default ringtone.
	ringtoneChanged bool
	// generation increments with every captured baseline.
	generation uint64
	// pending holds armed reset timers by id.
	pending map[uint64]pendingReset
	// nextTimerID is the id of the next armed timer.
	nextTimerID uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler replaces the runtime timer scheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.scheduler = s
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an idle engine driving port.
func New(port audio.Port, opts ...Option) *Engine {
	e := &Engine{
		port:      port,
		scheduler: TimeScheduler{},
		now:       time.Now,
		state:     SessionIdle,
		pending:   make(map[uint64]pendingReset),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := Status{
		State:         e.state,
		Baseline:      e.baseline.Clone(),
		Contact:       e.contact.Clone(),
		PendingResets: len(e.pending),
	}

	if e.state != SessionIdle {
		status.SessionID = e.sessionID.String()
		status.Since = e.since
	}

	return status
}

// Capture stores the current device configuration as the baseline unless one is already held.
func (e *Engine) Capture(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.captureLocked(ctx)
}

// captureLocked reads the baseline. A failed read stores nothing.
func (e *Engine) captureLocked(ctx context.Context) error {
	if e.state != SessionIdle {
		return nil
	}

	baseline, err := e.readBaseline(ctx)
	if err != nil {
		return fmt.Errorf("capture baseline: %w", err)
	}

	e.baseline = baseline
	e.state = SessionActive
	e.sessionID = uuid.New()
	e.since = e.now()
	e.contact = nil
	e.ringtoneChanged = false
	e.generation++

	logger.InfoKV(ctx, "Baseline captured",
		"session_id", e.sessionID.String(),
		"ringer_mode", baseline.RingerMode.String(),
		"ring_volume", baseline.RingVolume,
		"notification_volume", baseline.NotificationVolume,
		"system_volume", baseline.SystemVolume,
		"interruption_filter", baseline.InterruptionFilter.String(),
		"has_ringtone", baseline.Ringtone != nil,
	)

	return nil
}

// readBaseline reads every tracked field from the port.
func (e *Engine) readBaseline(ctx context.Context) (*ringer.AudioBaseline, error) {
	mode, err := e.port.RingerMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ringer mode: %w", err)
	}

	volumes := make(map[ringer.Stream]int, len(audio.Streams()))

	for _, stream := range audio.Streams() {
		volume, err := e.port.StreamVolume(ctx, stream)
		if err != nil {
			return nil, fmt.Errorf("read %s volume: %w", stream, err)
		}

		volumes[stream] = volume
	}

	ringtone, err := e.port.DefaultRingtone(ctx)
	if err != nil {
		return nil, fmt.Errorf("read default ringtone: %w", err)
	}

	// An unreadable filter is restored as "all", so it does not abort the capture.
	filter, err := e.port.InterruptionFilter(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Interruption filter unreadable", "error", err)

		filter = ringer.FilterUnknown
	}

	return &ringer.AudioBaseline{
		RingerMode:         mode,
		RingVolume:         volumes[ringer.StreamRing],
		NotificationVolume: volumes[ringer.StreamNotification],
		SystemVolume:       volumes[ringer.StreamSystem],
		InterruptionFilter: filter,
		Ringtone:           ringtone,
	}, nil
}

// Apply captures the baseline if needed and overrides the device for contact.
// Once the baseline is held, failures of individual writes are logged and Apply returns nil.
func (e *Engine) Apply(ctx context.Context, contact *ringer.Contact) error {
	if contact == nil {
		return ErrNilContact
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.captureLocked(ctx); err != nil {
		return err
	}

	// Once a baseline is held the override runs to completion; each port call
	// is still bounded by its own timeout.
	ctx = context.WithoutCancel(ctx)
	e.contact = contact.Clone()
	ctx = logger.WithKV(ctx, "session_id", e.sessionID.String(), "contact", contact.Name)

	if contact.OnlyVibrate {
		e.step(ctx, "set ringer mode", func() error {
			return e.port.SetRingerMode(ctx, ringer.RingerModeVibrate)
		})
	} else {
		e.step(ctx, "set ringer mode", func() error {
			return e.port.SetRingerMode(ctx, ringer.RingerModeNormal)
		})
		e.step(ctx, "set ring volume", func() error {
			maxVolume, err := e.port.MaxStreamVolume(ctx, ringer.StreamRing)
			if err != nil {
				return err
			}

			target := ringer.ScaleVolume(maxVolume, contact.Volume())

			return e.port.SetStreamVolume(ctx, ringer.StreamRing, target, ringer.FlagShowUI|ringer.FlagPlaySound)
		})
	}

	if contact.HasRingtone() {
		e.step(ctx, "set ringtone", func() error {
			e.ringtoneChanged = true

			return e.port.SetDefaultRingtone(ctx, contact.Ringtone)
		})
	}

	if e.port.HasPolicyAccess(ctx) {
		e.step(ctx, "relax interruption filter", func() error {
			return e.port.SetInterruptionFilter(ctx, ringer.FilterAll)
		})
	}

	logger.InfoKV(ctx, "Override applied",
		"only_vibrate", contact.OnlyVibrate,
		"volume_percent", contact.Volume(),
		"custom_ringtone", contact.HasRingtone(),
	)

	return nil
}

// Reset restores the baseline and returns the engine to Idle.
// It is a no-op when no baseline is held.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked(ctx)

	return nil
}

// resetLocked restores every field independently. The baseline is discarded
// whatever the outcome.
func (e *Engine) resetLocked(ctx context.Context) {
	if e.state == SessionIdle {
		logger.DebugKV(ctx, "Reset skipped, no baseline held")
		return
	}

	e.state = SessionResetting
	baseline := e.baseline
	// The baseline is discarded below, so the restore must not stop with the caller.
	ctx = logger.WithKV(context.WithoutCancel(ctx), "session_id", e.sessionID.String())

	failed := 0

	defer func() {
		e.stopPendingLocked()

		e.baseline = nil
		e.contact = nil
		e.ringtoneChanged = false
		e.state = SessionIdle

		logger.InfoKV(ctx, "Baseline restored", "failed_steps", failed, "duration", e.now().Sub(e.since).String())
	}()

	restore := func(name string, fn func() error) {
		if !e.step(ctx, name, fn) {
			failed++
		}
	}

	restore("restore ring volume", func() error {
		return e.port.SetStreamVolume(ctx, ringer.StreamRing, baseline.RingVolume, 0)
	})
	restore("restore notification volume", func() error {
		return e.port.SetStreamVolume(ctx, ringer.StreamNotification, baseline.NotificationVolume, 0)
	})
	restore("restore system volume", func() error {
		return e.port.SetStreamVolume(ctx, ringer.StreamSystem, baseline.SystemVolume, 0)
	})
	restore("restore ringer mode", func() error {
		return e.port.SetRingerMode(ctx, baseline.RingerMode)
	})

	if e.port.HasPolicyAccess(ctx) {
		filter := baseline.InterruptionFilter
		if filter == ringer.FilterUnknown {
			filter = ringer.FilterAll
		}

		restore("restore interruption filter", func() error {
			return e.port.SetInterruptionFilter(ctx, filter)
		})
	} else {
		logger.DebugKV(ctx, "Interruption filter restore skipped, no policy access")
	}

	if baseline.Ringtone != nil || e.ringtoneChanged {
		restore("restore ringtone", func() error {
			return e.port.SetDefaultRingtone(ctx, baseline.Ringtone)
		})
	}
}

// step runs one device write, logging and swallowing its failure.
// Panics from the port are recovered so the caller's bookkeeping still runs.
func (e *Engine) step(ctx context.Context, name string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Audio step panicked", "step", name, "panic", r)

			ok = false
		}
	}()

	if err := fn(); err != nil {
		logger.WarnKV(ctx, "Audio step failed", "step", name, "error", err)

		return false
	}

	return true
}

// ScheduleReset arms a timer that calls Reset after delay.
// A timer armed in one session never resets a later one.
func (e *Engine) ScheduleReset(ctx context.Context, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextTimerID++
	id := e.nextTimerID
	generation := e.generation
	timerCtx := context.WithoutCancel(ctx)

	timer := e.scheduler.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		delete(e.pending, id)

		if e.generation != generation {
			logger.DebugKV(timerCtx, "Scheduled reset outlived its session, ignoring")
			return
		}

		e.resetLocked(timerCtx)
	})

	e.pending[id] = pendingReset{timer: timer, generation: generation}

	logger.DebugKV(ctx, "Reset scheduled", "delay", delay.String(), "state", string(e.state))
}

// stopPendingLocked cancels every armed reset timer.
func (e *Engine) stopPendingLocked() {
	for id, p := range e.pending {
		p.timer.Stop()
		delete(e.pending, id)
	}
}
