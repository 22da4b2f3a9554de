package server

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/events"
	"github.com/oshokin/contact-ringer/internal/logger"
	"github.com/oshokin/contact-ringer/internal/repository/contacts"
)

// contactStore is the contact directory with write access.
type contactStore interface {
	contacts.Directory
	Upsert(ctx context.Context, contact *ringer.Contact) error
	Delete(ctx context.Context, name string) error
}

// service implements the control API on top of the engine, the directory and the dispatcher.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// engine owns the override session.
	engine *engine.Engine
	// contacts is the designated contact directory.
	contacts contactStore
	// dispatcher queues host events for the correlators.
	dispatcher *events.Dispatcher
}

// newService creates a service.
func newService(eng *engine.Engine, store contactStore, dispatcher *events.Dispatcher) *service {
	return &service{
		engine:     eng,
		contacts:   store,
		dispatcher: dispatcher,
	}
}

// Status returns the engine snapshot.
func (s *service) Status(context.Context) engine.Status {
	return s.engine.Status()
}

// QueuedEvents returns the number of events waiting for the correlators.
func (s *service) QueuedEvents() int {
	return s.dispatcher.Pending()
}

// Apply overrides the device for the named contact.
func (s *service) Apply(ctx context.Context, name string) (*ringer.Contact, error) {
	contact, err := s.contacts.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find contact %q: %w", name, err)
	}

	if contact == nil {
		return nil, fmt.Errorf("contact %q: %w", name, contacts.ErrNotFound)
	}

	if err = s.engine.Apply(ctx, contact); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Override applied on request", "contact", contact.Name)

	return contact, nil
}

// Reset restores the baseline.
func (s *service) Reset(ctx context.Context) error {
	logger.InfoKV(ctx, "Reset requested")

	return s.engine.Reset(ctx)
}

// ScheduleReset arms a delayed reset.
func (s *service) ScheduleReset(ctx context.Context, delay time.Duration) {
	s.engine.ScheduleReset(ctx, delay)
}

// Submit queues a host event without blocking the caller.
func (s *service) Submit(_ context.Context, event any) error {
	return s.dispatcher.TrySubmit(event)
}

// UpsertContact stores a designated contact.
func (s *service) UpsertContact(ctx context.Context, contact *ringer.Contact) error {
	if err := s.contacts.Upsert(ctx, contact); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}

	logger.InfoKV(ctx, "Contact designated", "contact", contact.Name, "only_vibrate", contact.OnlyVibrate)

	return nil
}

// DeleteContact removes a designated contact.
func (s *service) DeleteContact(ctx context.Context, name string) error {
	if err := s.contacts.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}

	logger.InfoKV(ctx, "Contact removed", "contact", name)

	return nil
}

// ListContacts returns the designated contacts ordered by name.
func (s *service) ListContacts(ctx context.Context) ([]*ringer.Contact, error) {
	list, err := s.contacts.ListDesignated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	return list, nil
}
