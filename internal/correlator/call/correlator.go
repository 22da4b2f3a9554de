package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/logger"
	"github.com/oshokin/contact-ringer/internal/repository/callstate"
)

// Event is a telephony phase change.
type Event struct {
	// Phase is the new phase.
	Phase ringer.CallPhase
	// Number is the incoming number, set only for ringing.
	Number string
}

// Engine is the part of the override engine the correlator drives.
type Engine interface {
	Apply(ctx context.Context, contact *ringer.Contact) error
	Reset(ctx context.Context) error
}

// Resolver finds the designated contact of a number.
type Resolver interface {
	FindByNumber(ctx context.Context, number string) (*ringer.Contact, error)
}

// Correlator turns call phases into override sessions.
type Correlator struct {
	// engine applies and resets overrides.
	engine Engine
	// resolver maps numbers to contacts.
	resolver Resolver
	// repo persists the state.
	repo callstate.Repository

	// mu protects state.
	mu sync.Mutex
	// state is authoritative; the repository is a copy.
	state ringer.CallState
}

// NewCorrelator loads the persisted state. A missing or unreadable record starts from the neutral state.
func NewCorrelator(ctx context.Context, engine Engine, resolver Resolver, repo callstate.Repository) *Correlator {
	state, err := repo.Load(ctx)

	switch {
	case errors.Is(err, callstate.ErrNotFound):
		logger.DebugKV(ctx, "No call state stored, starting idle")
	case err != nil:
		logger.WarnKV(ctx, "Call state unreadable, starting idle", "error", err)
	default:
		logger.InfoKV(ctx, "Call state restored", "phase", string(state.Phase), "tracking", state.Tracking)
	}

	return &Correlator{
		engine:   engine,
		resolver: resolver,
		repo:     repo,
		state:    state,
	}
}

// State returns the current phase and tracking flag.
func (c *Correlator) State() ringer.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Handle applies one phase change.
func (c *Correlator) Handle(ctx context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = logger.WithKV(ctx, "phase", string(event.Phase))

	var err error

	switch event.Phase {
	case ringer.CallPhaseRinging:
		err = c.ringing(ctx, event.Number)
	case ringer.CallPhaseOffhook:
		if c.state.Phase == ringer.CallPhaseRinging {
			c.state.Phase = ringer.CallPhaseOffhook
		}
	case ringer.CallPhaseIdle:
		err = c.idle(ctx)
	default:
		return fmt.Errorf("unknown call phase %q", event.Phase)
	}

	if saveErr := c.repo.Save(ctx, c.state); saveErr != nil {
		logger.WarnKV(ctx, "Call state not persisted", "error", saveErr)
	}

	return err
}

// ringing applies the contact's policy when the number is designated.
func (c *Correlator) ringing(ctx context.Context, number string) error {
	if number == "" {
		logger.DebugKV(ctx, "Ringing without a number, ignoring")

		c.dropRing()

		return nil
	}

	contact, err := c.resolver.FindByNumber(ctx, number)
	if err != nil {
		c.dropRing()

		return fmt.Errorf("resolve caller: %w", err)
	}

	if contact == nil {
		logger.DebugKV(ctx, "Caller is not designated", "number", number)

		c.dropRing()

		return nil
	}

	c.state.Phase = ringer.CallPhaseRinging

	if err = c.engine.Apply(ctx, contact); err != nil {
		return fmt.Errorf("apply override for %q: %w", contact.Name, err)
	}

	c.state.Tracking = true

	logger.InfoKV(ctx, "Designated caller ringing", "contact", contact.Name)

	return nil
}

// dropRing handles a ring that does not start an override.
// A tracked call keeps its record so the coming Idle still restores the device.
func (c *Correlator) dropRing() {
	if c.state.Tracking {
		return
	}

	c.state.Phase = ringer.CallPhaseIdle
}

// idle restores the device when a tracked call ends.
func (c *Correlator) idle(ctx context.Context) error {
	tracked := c.state.Tracking

	c.state = ringer.NeutralCallState()

	if !tracked {
		return nil
	}

	logger.InfoKV(ctx, "Tracked call ended, restoring audio")

	if err := c.engine.Reset(ctx); err != nil {
		return fmt.Errorf("reset after call: %w", err)
	}

	return nil
}
