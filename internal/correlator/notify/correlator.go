package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/logger"
	"github.com/oshokin/contact-ringer/internal/repository/contacts"
	"github.com/oshokin/contact-ringer/internal/tone"
)

// Notification extras read by the correlator.
const (
	// ExtraTitle holds the SMS sender shown by the SMS application.
	ExtraTitle = "android.title"
	// ExtraCallPersonURI holds the caller URI of a call notification, usually "tel:<number>".
	ExtraCallPersonURI = "android.callPerson.uri"
	// ExtraCallPersonName holds the caller display name of a call notification.
	ExtraCallPersonName = "android.callPerson.name"
)

// Posted is a notification posted by an application.
type Posted struct {
	Package string
	Key     string
	Extras  map[string]string
}

// Removed is a notification removed from the shade.
type Removed struct {
	Package string
	Key     string
}

// SMS is an incoming text message.
type SMS struct {
	Sender string
	Body   string
}

// Engine is the part of the override engine the correlator drives.
type Engine interface {
	Apply(ctx context.Context, contact *ringer.Contact) error
	Reset(ctx context.Context) error
	ScheduleReset(ctx context.Context, delay time.Duration)
}

// Settings holds the packages and timings of the correlator.
type Settings struct {
	// SMSPackage is the package of the default SMS application.
	SMSPackage string
	// CallUIPackage is the package of the vendor in-call UI.
	CallUIPackage string
	// SMSCooldown drops SMS arriving this soon after a handled one.
	SMSCooldown time.Duration
	// SMSRingDuration is how long an SMS override stays applied.
	SMSRingDuration time.Duration
	// CallUIDelay is the pause before a call notification applies its override.
	CallUIDelay time.Duration
	// ToneDelay is the pause before the substitution tone plays.
	ToneDelay time.Duration
	// DefaultTone is played for contacts without a custom ringtone. Nil selects the built-in cue.
	DefaultTone *string
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithScheduler replaces the runtime timer scheduler.
func WithScheduler(s engine.Scheduler) Option {
	return func(c *Correlator) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) {
		if now != nil {
			c.now = now
		}
	}
}

// Correlator turns notifications into override sessions.
type Correlator struct {
	settings  Settings
	engine    Engine
	directory contacts.Directory
	player    tone.Player
	scheduler engine.Scheduler
	now       func() time.Time

	// mu protects the fields below, including from delayed callbacks.
	mu sync.Mutex
	// seen holds the keys of posted notifications not yet removed.
	seen map[string]struct{}
	// lastSMS is when the last SMS override was applied.
	lastSMS time.Time
	// callKey is the key of the call notification owning the override.
	callKey string
	// pendingCalls holds delayed call overrides by notification key.
	pendingCalls map[string]engine.Timer
	// toneTimer is the substitution tone waiting for its delay.
	toneTimer engine.Timer
	// closed stops delayed callbacks from touching the engine or the player.
	closed bool
}

// NewCorrelator creates a correlator.
func NewCorrelator(
	settings Settings,
	eng Engine,
	directory contacts.Directory,
	player tone.Player,
	opts ...Option,
) *Correlator {
	c := &Correlator{
		settings:     settings,
		engine:       eng,
		directory:    directory,
		player:       player,
		scheduler:    engine.TimeScheduler{},
		now:          time.Now,
		seen:         make(map[string]struct{}),
		pendingCalls: make(map[string]engine.Timer),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HandlePosted routes a posted notification by package.
func (c *Correlator) HandlePosted(ctx context.Context, n Posted) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = logger.WithKV(ctx, "package", n.Package, "key", n.Key)

	if _, ok := c.seen[n.Key]; ok {
		logger.DebugKV(ctx, "Notification already handled")
		return nil
	}

	switch n.Package {
	case c.settings.SMSPackage:
		c.seen[n.Key] = struct{}{}

		sender := n.Extras[ExtraTitle]
		if sender == "" {
			logger.DebugKV(ctx, "SMS notification without a sender")
			return nil
		}

		return c.sms(ctx, sender)
	case c.settings.CallUIPackage:
		c.seen[n.Key] = struct{}{}

		return c.callNotification(ctx, n)
	default:
		return nil
	}
}

// HandleRemoved forgets a notification and ends the call override it owns.
func (c *Correlator) HandleRemoved(ctx context.Context, n Removed) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.seen, n.Key)

	if n.Package != c.settings.CallUIPackage {
		return nil
	}

	ctx = logger.WithKV(ctx, "package", n.Package, "key", n.Key)

	if timer, ok := c.pendingCalls[n.Key]; ok {
		timer.Stop()
		delete(c.pendingCalls, n.Key)
		logger.DebugKV(ctx, "Call notification removed before its override")
	}

	if c.callKey == "" || c.callKey != n.Key {
		return nil
	}

	c.callKey = ""

	logger.InfoKV(ctx, "Call notification removed, restoring audio")

	if err := c.engine.Reset(ctx); err != nil {
		return fmt.Errorf("reset after call notification: %w", err)
	}

	return nil
}

// HandleSMS handles an SMS delivered directly by the host.
func (c *Correlator) HandleSMS(ctx context.Context, msg SMS) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sms(ctx, msg.Sender)
}

// sms applies a short override for a designated sender.
func (c *Correlator) sms(ctx context.Context, sender string) error {
	ctx = logger.WithKV(ctx, "sender", sender)
	now := c.now()

	if !c.lastSMS.IsZero() && now.Sub(c.lastSMS) <= c.settings.SMSCooldown {
		logger.DebugKV(ctx, "SMS within cooldown, skipping")
		return nil
	}

	contact, err := c.resolveSender(ctx, sender)
	if err != nil {
		return err
	}

	if contact == nil {
		logger.DebugKV(ctx, "SMS sender is not designated")
		return nil
	}

	if err = c.engine.Apply(ctx, contact); err != nil {
		return fmt.Errorf("apply override for %q: %w", contact.Name, err)
	}

	if !contact.OnlyVibrate {
		c.playTone(ctx, contact)
	}

	c.engine.ScheduleReset(ctx, c.settings.SMSRingDuration)
	c.lastSMS = now

	logger.InfoKV(ctx, "SMS from designated contact", "contact", contact.Name)

	return nil
}

// resolveSender matches the exact display name first, then a numeric sender by number.
func (c *Correlator) resolveSender(ctx context.Context, sender string) (*ringer.Contact, error) {
	designated, err := c.directory.ListDesignated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list designated contacts: %w", err)
	}

	for _, contact := range designated {
		if contact.Name == sender {
			return contact, nil
		}
	}

	number, ok := ringer.ExtractNumber(sender)
	if !ok {
		return nil, nil
	}

	contact, err := c.directory.FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("find sender by number: %w", err)
	}

	return contact, nil
}

// playTone plays the substitution tone after the configured delay.
func (c *Correlator) playTone(ctx context.Context, contact *ringer.Contact) {
	ringtone := c.settings.DefaultTone
	if contact.HasRingtone() {
		ringtone = contact.Ringtone
	}

	toneCtx := context.WithoutCancel(ctx)

	c.toneTimer = c.scheduler.AfterFunc(c.settings.ToneDelay, func() {
		c.mu.Lock()
		closed := c.closed
		c.toneTimer = nil
		c.mu.Unlock()

		if closed {
			return
		}

		playCtx, cancel := context.WithTimeout(toneCtx, c.settings.SMSRingDuration)
		defer cancel()

		if err := c.player.Play(playCtx, ringtone); err != nil {
			logger.WarnKV(playCtx, "Substitution tone failed", "error", err)
		}
	})
}

// Close stops the delayed call overrides and the pending tone. Callbacks
// already running return without touching the engine.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	for key, timer := range c.pendingCalls {
		timer.Stop()
		delete(c.pendingCalls, key)
	}

	if c.toneTimer != nil {
		c.toneTimer.Stop()
		c.toneTimer = nil
	}
}

// callNotification schedules an override for a call notification of a designated contact.
func (c *Correlator) callNotification(ctx context.Context, n Posted) error {
	uri, name := n.Extras[ExtraCallPersonURI], n.Extras[ExtraCallPersonName]
	if uri == "" && name == "" {
		logger.DebugKV(ctx, "Call notification without a caller")
		return nil
	}

	contact, err := c.resolveCaller(ctx, uri, name)
	if err != nil {
		return err
	}

	if contact == nil {
		logger.DebugKV(ctx, "Caller is not designated", "name", name)
		return nil
	}

	callCtx := context.WithoutCancel(ctx)
	key := n.Key

	c.pendingCalls[key] = c.scheduler.AfterFunc(c.settings.CallUIDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if _, ok := c.pendingCalls[key]; !ok || c.closed {
			return
		}

		delete(c.pendingCalls, key)

		if err := c.engine.Apply(callCtx, contact); err != nil {
			logger.ErrorKV(callCtx, "Call notification override failed", "contact", contact.Name, "error", err)
			return
		}

		c.callKey = key

		logger.InfoKV(callCtx, "Call from designated contact", "contact", contact.Name)
	})

	return nil
}

// resolveCaller matches the tel: URI by number first, then the name case-insensitively.
func (c *Correlator) resolveCaller(ctx context.Context, uri, name string) (*ringer.Contact, error) {
	if number, ok := ringer.NumberFromURI(uri); ok {
		contact, err := c.directory.FindByNumber(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("find caller by number: %w", err)
		}

		if contact != nil {
			return contact, nil
		}
	}

	if name == "" {
		return nil, nil
	}

	designated, err := c.directory.ListDesignated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list designated contacts: %w", err)
	}

	for _, contact := range designated {
		if ringer.SameName(contact.Name, name) {
			return contact, nil
		}
	}

	return nil, nil
}
