package ringer

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/contact-ringer/internal/correlator/call"
	"github.com/oshokin/contact-ringer/internal/correlator/notify"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/events"
	"github.com/oshokin/contact-ringer/internal/logger"
	"github.com/oshokin/contact-ringer/internal/repository/contacts"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Status(ctx context.Context) engine.Status
	QueuedEvents() int
	Apply(ctx context.Context, name string) (*ringer.Contact, error)
	Reset(ctx context.Context) error
	ScheduleReset(ctx context.Context, delay time.Duration)
	Submit(ctx context.Context, event any) error
	UpsertContact(ctx context.Context, contact *ringer.Contact) error
	DeleteContact(ctx context.Context, name string) error
	ListContacts(ctx context.Context) ([]*ringer.Contact, error)
}

// Server implements RingerService.
type Server struct {
	// service provides the business logic.
	service Service
}

var _ RingerServiceServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Status returns the engine state and the event queue depth.
func (s *Server) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return StatusToStruct(s.service.Status(ctx), s.service.QueuedEvents()), nil
}

// Apply overrides the device for the named contact.
func (s *Server) Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, FieldName)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	ctx = withActor(ctx, req)

	contact, err := s.service.Apply(ctx, name)
	if err != nil {
		return nil, toStatus(ctx, "apply", err)
	}

	return ContactToStruct(contact), nil
}

// Reset restores the baseline.
func (s *Server) Reset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.service.Reset(withActor(ctx, req)); err != nil {
		return nil, toStatus(ctx, "reset", err)
	}

	return new(structpb.Struct), nil
}

// ScheduleReset arms a delayed reset.
func (s *Server) ScheduleReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	delay, ok, err := intField(req, FieldDelayMS)
	if err != nil || !ok || delay < 0 {
		return nil, status.Error(codes.InvalidArgument, "delay_ms must be a non-negative integer")
	}

	s.service.ScheduleReset(withActor(ctx, req), time.Duration(delay)*time.Millisecond)

	return new(structpb.Struct), nil
}

// PostCallState queues a telephony phase change.
func (s *Server) PostCallState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	phase, err := ringer.ParseCallPhase(stringField(req, FieldPhase))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.submit(ctx, call.Event{Phase: phase, Number: stringField(req, FieldNumber)})
}

// PostSMS queues an incoming SMS.
func (s *Server) PostSMS(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sender := stringField(req, FieldSender)
	if sender == "" {
		return nil, status.Error(codes.InvalidArgument, "sender is required")
	}

	return s.submit(ctx, notify.SMS{Sender: sender, Body: stringField(req, FieldBody)})
}

// PostNotification queues a posted notification.
func (s *Server) PostNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pkg, key := stringField(req, FieldPackage), stringField(req, FieldKey)
	if pkg == "" || key == "" {
		return nil, status.Error(codes.InvalidArgument, "package and key are required")
	}

	return s.submit(ctx, notify.Posted{Package: pkg, Key: key, Extras: stringMapField(req, FieldExtras)})
}

// RemoveNotification queues a notification removal.
func (s *Server) RemoveNotification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pkg, key := stringField(req, FieldPackage), stringField(req, FieldKey)
	if pkg == "" || key == "" {
		return nil, status.Error(codes.InvalidArgument, "package and key are required")
	}

	return s.submit(ctx, notify.Removed{Package: pkg, Key: key})
}

// UpsertContact stores a designated contact.
func (s *Server) UpsertContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	contact, err := ContactFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if contact.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	if err = s.service.UpsertContact(withActor(ctx, req), contact); err != nil {
		return nil, toStatus(ctx, "upsert contact", err)
	}

	return ContactToStruct(contact), nil
}

// DeleteContact removes a designated contact.
func (s *Server) DeleteContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, FieldName)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	if err := s.service.DeleteContact(withActor(ctx, req), name); err != nil {
		return nil, toStatus(ctx, "delete contact", err)
	}

	return new(structpb.Struct), nil
}

// ListContacts returns every designated contact ordered by name.
func (s *Server) ListContacts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.service.ListContacts(ctx)
	if err != nil {
		return nil, toStatus(ctx, "list contacts", err)
	}

	return ContactsToStruct(list), nil
}

// submit hands an event to the dispatcher without waiting for room.
func (s *Server) submit(ctx context.Context, event any) (*structpb.Struct, error) {
	if err := s.service.Submit(ctx, event); err != nil {
		return nil, toStatus(ctx, "submit event", err)
	}

	return new(structpb.Struct), nil
}

// withActor adds the requesting actor to the logger of ctx.
func withActor(ctx context.Context, req *structpb.Struct) context.Context {
	if actor := ActorFromRequest(req); actor != nil {
		return logger.WithKV(ctx, "requested_by", actor.String())
	}

	return ctx
}

// toStatus maps service errors to gRPC codes.
func toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, contacts.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, contacts.ErrNameRequired),
		errors.Is(err, engine.ErrNilContact),
		errors.Is(err, events.ErrUnknownEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, events.ErrQueueFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		logger.ErrorKV(ctx, "Request failed", "operation", op, "error", err)

		return status.Errorf(codes.Internal, "unable to %s", op)
	}
}
