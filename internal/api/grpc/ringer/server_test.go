package ringer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/contact-ringer/internal/correlator/call"
	"github.com/oshokin/contact-ringer/internal/correlator/notify"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/events"
	"github.com/oshokin/contact-ringer/internal/repository/contacts"
)

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	mu        sync.Mutex
	contacts  map[string]*ringer.Contact
	submitted []any
	submitErr error
	resets    int
	delays    []time.Duration
	status    engine.Status
}

func newFakeService() *fakeService {
	return &fakeService{contacts: map[string]*ringer.Contact{
		"Alice": ringer.NewContact("Alice", "5551234567"),
	}}
}

// Status returns the canned status.
func (f *fakeService) Status(context.Context) engine.Status { return f.status }

// QueuedEvents reports a fixed depth.
func (f *fakeService) QueuedEvents() int { return 3 }

// Apply looks up the contact by name.
func (f *fakeService) Apply(_ context.Context, name string) (*ringer.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	contact, ok := f.contacts[name]
	if !ok {
		return nil, fmt.Errorf("apply %q: %w", name, contacts.ErrNotFound)
	}

	return contact, nil
}

// Reset counts resets.
func (f *fakeService) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resets++

	return nil
}

// ScheduleReset records the delay.
func (f *fakeService) ScheduleReset(_ context.Context, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delays = append(f.delays, delay)
}

// Submit records the event or fails with submitErr.
func (f *fakeService) Submit(_ context.Context, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitErr != nil {
		return f.submitErr
	}

	f.submitted = append(f.submitted, event)

	return nil
}

// UpsertContact stores the contact.
func (f *fakeService) UpsertContact(_ context.Context, contact *ringer.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.contacts[contact.Name] = contact

	return nil
}

// DeleteContact removes the contact.
func (f *fakeService) DeleteContact(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.contacts[name]; !ok {
		return contacts.ErrNotFound
	}

	delete(f.contacts, name)

	return nil
}

// ListContacts returns the contacts.
func (f *fakeService) ListContacts(context.Context) ([]*ringer.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := make([]*ringer.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		list = append(list, c)
	}

	return list, nil
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()

	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	return s
}

// TestServer_Validation returns InvalidArgument for malformed requests.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewServer(newFakeService())

	tests := []struct {
		name string
		call func() error
	}{
		{name: "apply without name", call: func() error { _, err := s.Apply(ctx, nil); return err }},
		{name: "negative delay", call: func() error {
			_, err := s.ScheduleReset(ctx, mustStruct(t, map[string]any{FieldDelayMS: -1}))
			return err
		}},
		{name: "fractional delay", call: func() error {
			_, err := s.ScheduleReset(ctx, mustStruct(t, map[string]any{FieldDelayMS: 1.5}))
			return err
		}},
		{name: "missing delay", call: func() error { _, err := s.ScheduleReset(ctx, nil); return err }},
		{name: "unknown phase", call: func() error {
			_, err := s.PostCallState(ctx, mustStruct(t, map[string]any{FieldPhase: "dialing"}))
			return err
		}},
		{name: "sms without sender", call: func() error { _, err := s.PostSMS(ctx, nil); return err }},
		{name: "notification without key", call: func() error {
			_, err := s.PostNotification(ctx, mustStruct(t, map[string]any{FieldPackage: "com.example"}))
			return err
		}},
		{name: "removal without package", call: func() error {
			_, err := s.RemoveNotification(ctx, mustStruct(t, map[string]any{FieldKey: "k"}))
			return err
		}},
		{name: "contact volume out of range", call: func() error {
			_, err := s.UpsertContact(ctx, mustStruct(t, map[string]any{FieldName: "Bob", FieldVolume: 150}))
			return err
		}},
		{name: "contact without name", call: func() error {
			_, err := s.UpsertContact(ctx, mustStruct(t, map[string]any{FieldNumber: "555"}))
			return err
		}},
		{name: "delete without name", call: func() error { _, err := s.DeleteContact(ctx, nil); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, codes.InvalidArgument, status.Code(tt.call()))
		})
	}
}

// TestServer_ErrorCodes maps service errors to gRPC codes.
func TestServer_ErrorCodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newFakeService()
	s := NewServer(svc)

	_, err := s.Apply(ctx, mustStruct(t, map[string]any{FieldName: "Nobody"}))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.DeleteContact(ctx, mustStruct(t, map[string]any{FieldName: "Nobody"}))
	require.Equal(t, codes.NotFound, status.Code(err))

	svc.submitErr = fmt.Errorf("%w: dropped", events.ErrQueueFull)
	_, err = s.PostSMS(ctx, mustStruct(t, map[string]any{FieldSender: "Alice"}))
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	svc.submitErr = fmt.Errorf("boom")
	_, err = s.PostSMS(ctx, mustStruct(t, map[string]any{FieldSender: "Alice"}))
	require.Equal(t, codes.Internal, status.Code(err))
}

// TestServer_Events converts requests into dispatcher events.
func TestServer_Events(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newFakeService()
	s := NewServer(svc)

	_, err := s.PostCallState(ctx, mustStruct(t, map[string]any{FieldPhase: "RINGING", FieldNumber: "5551234567"}))
	require.NoError(t, err)

	_, err = s.PostSMS(ctx, mustStruct(t, map[string]any{FieldSender: "Alice", FieldBody: "hi"}))
	require.NoError(t, err)

	_, err = s.PostNotification(ctx, mustStruct(t, map[string]any{
		FieldPackage: "com.example.incallui",
		FieldKey:     "call-1",
		FieldExtras:  map[string]any{"android.callPerson.uri": "tel:5551234567", "android.progress": 3},
	}))
	require.NoError(t, err)

	_, err = s.RemoveNotification(ctx, mustStruct(t, map[string]any{FieldPackage: "com.example.incallui", FieldKey: "call-1"}))
	require.NoError(t, err)

	require.Equal(t, []any{
		call.Event{Phase: ringer.CallPhaseRinging, Number: "5551234567"},
		notify.SMS{Sender: "Alice", Body: "hi"},
		notify.Posted{
			Package: "com.example.incallui",
			Key:     "call-1",
			Extras:  map[string]string{"android.callPerson.uri": "tel:5551234567", "android.progress": "3"},
		},
		notify.Removed{Package: "com.example.incallui", Key: "call-1"},
	}, svc.submitted)
}

// TestServer_StatusEncoding carries the session and baseline through the wire form.
func TestServer_StatusEncoding(t *testing.T) {
	t.Parallel()

	ringtone := "content://tone/1"
	since := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	svc := newFakeService()
	svc.status = engine.Status{
		State:     engine.SessionActive,
		SessionID: "7d6f",
		Since:     since,
		Baseline: &ringer.AudioBaseline{
			RingerMode:         ringer.RingerModeSilent,
			RingVolume:         0,
			NotificationVolume: 4,
			SystemVolume:       2,
			InterruptionFilter: ringer.FilterPriority,
			Ringtone:           &ringtone,
		},
		Contact:       &ringer.Contact{Name: "Alice", Number: "555", VolumePercent: 80},
		PendingResets: 1,
	}

	resp, err := NewServer(svc).Status(context.Background(), nil)
	require.NoError(t, err)

	report, err := StatusFromStruct(resp)
	require.NoError(t, err)
	require.Equal(t, &StatusReport{
		State:         "active",
		SessionID:     "7d6f",
		Since:         since,
		PendingResets: 1,
		QueuedEvents:  3,
		Contact:       &ringer.Contact{Name: "Alice", Number: "555", VolumePercent: 80},
		Baseline: &BaselineReport{
			RingerMode:         "silent",
			NotificationVolume: 4,
			SystemVolume:       2,
			InterruptionFilter: "priority",
			Ringtone:           &ringtone,
		},
	}, report)
}

// TestRingerService_OverGRPC exercises the descriptor, server and client through a real connection.
func TestRingerService_OverGRPC(t *testing.T) {
	t.Parallel()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	svc := newFakeService()
	RegisterRingerServiceServer(server, NewServer(svc))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	client := NewRingerServiceClient(conn)

	ringtone := "/tones/bob.ogg"
	bob := &ringer.Contact{Name: "Bob", Number: "5559876543", Ringtone: &ringtone, VolumePercent: 60}

	_, err = client.Invoke(ctx, MethodUpsertContact, ContactToStruct(bob))
	require.NoError(t, err)

	resp, err := client.Invoke(ctx, MethodApply, mustStruct(t, map[string]any{FieldName: "Bob"}))
	require.NoError(t, err)

	applied, err := ContactFromStruct(resp)
	require.NoError(t, err)
	require.Equal(t, bob, applied)

	_, err = client.Invoke(ctx, MethodScheduleReset, mustStruct(t, map[string]any{FieldDelayMS: 3000}))
	require.NoError(t, err)
	require.Equal(t, []time.Duration{3 * time.Second}, svc.delays)

	_, err = client.Invoke(ctx, MethodReset, nil)
	require.NoError(t, err)
	require.Equal(t, 1, svc.resets)

	_, err = client.Invoke(ctx, MethodApply, mustStruct(t, map[string]any{FieldName: "Nobody"}))
	require.Equal(t, codes.NotFound, status.Code(err))

	resp, err = client.Invoke(ctx, MethodListContacts, nil)
	require.NoError(t, err)

	list, err := ContactsFromStruct(resp)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

// TestContactFromStruct_Defaults applies the default volume when none is sent.
func TestContactFromStruct_Defaults(t *testing.T) {
	t.Parallel()

	contact, err := ContactFromStruct(mustStruct(t, map[string]any{FieldName: "Cara", FieldNumber: "555"}))
	require.NoError(t, err)
	require.Equal(t, ringer.NewContact("Cara", "555"), contact)

	_, err = ContactFromStruct(mustStruct(t, map[string]any{FieldName: "Cara", FieldVolume: "loud"}))
	require.Error(t, err)
}

// TestActorFromRequest reads the optional audit actor.
func TestActorFromRequest(t *testing.T) {
	t.Parallel()

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldActor: structpb.NewStructValue(ActorToStruct(&Actor{Hostname: "desk", Username: "sam"})),
	}}

	require.Equal(t, "sam@desk", ActorFromRequest(req).String())
	require.Nil(t, ActorFromRequest(nil))
	require.Equal(t, "unknown", ActorFromRequest(nil).String())
}
