package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/contact-ringer/internal/correlator/call"
	"github.com/oshokin/contact-ringer/internal/correlator/notify"
	"github.com/oshokin/contact-ringer/internal/logger"
)

// DefaultQueueSize is the queue capacity used when none is given.
const DefaultQueueSize = 64

var (
	// ErrQueueFull is returned by TrySubmit when the queue has no room.
	ErrQueueFull = errors.New("event queue is full")
	// ErrUnknownEvent is returned for an event the dispatcher cannot route.
	ErrUnknownEvent = errors.New("unknown event type")
)

// CallHandler consumes telephony phase changes.
type CallHandler interface {
	Handle(ctx context.Context, event call.Event) error
}

// NotificationHandler consumes notifications and SMS.
type NotificationHandler interface {
	HandlePosted(ctx context.Context, n notify.Posted) error
	HandleRemoved(ctx context.Context, n notify.Removed) error
	HandleSMS(ctx context.Context, msg notify.SMS) error
}

// Dispatcher is a bounded queue drained by one goroutine.
// Accepted event types are call.Event, notify.Posted, notify.Removed and notify.SMS.
type Dispatcher struct {
	queue         chan any
	calls         CallHandler
	notifications NotificationHandler
}

// NewDispatcher creates a dispatcher with the given capacity.
func NewDispatcher(size int, calls CallHandler, notifications NotificationHandler) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Dispatcher{
		queue:         make(chan any, size),
		calls:         calls,
		notifications: notifications,
	}
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Submit queues an event, waiting for room until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, event any) error {
	if err := validate(event); err != nil {
		return err
	}

	select {
	case d.queue <- event:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit %T: %w", event, ctx.Err())
	}
}

// TrySubmit queues an event or fails with ErrQueueFull.
func (d *Dispatcher) TrySubmit(event any) error {
	if err := validate(event); err != nil {
		return err
	}

	select {
	case d.queue <- event:
		return nil
	default:
		return fmt.Errorf("%w: %T dropped", ErrQueueFull, event)
	}
}

// Run routes queued events until ctx is done. Events still queued then are dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "events")

	logger.DebugKV(ctx, "Dispatcher started", "capacity", cap(d.queue))

	for {
		select {
		case <-ctx.Done():
			if dropped := len(d.queue); dropped > 0 {
				logger.WarnKV(ctx, "Dispatcher stopped with queued events", "dropped", dropped)
			}

			return
		case event := <-d.queue:
			d.dispatch(ctx, event)
		}
	}
}

// dispatch routes one event. Handler failures and panics are logged.
func (d *Dispatcher) dispatch(ctx context.Context, event any) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Event handler panicked", "event", fmt.Sprintf("%T", event), "panic", r)
		}
	}()

	var err error

	switch e := event.(type) {
	case call.Event:
		err = d.calls.Handle(ctx, e)
	case notify.Posted:
		err = d.notifications.HandlePosted(ctx, e)
	case notify.Removed:
		err = d.notifications.HandleRemoved(ctx, e)
	case notify.SMS:
		err = d.notifications.HandleSMS(ctx, e)
	}

	if err != nil {
		logger.WarnKV(ctx, "Event handling failed", "event", fmt.Sprintf("%T", event), "error", err)
	}
}

// validate rejects events that dispatch cannot route.
func validate(event any) error {
	switch event.(type) {
	case call.Event, notify.Posted, notify.Removed, notify.SMS:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}
