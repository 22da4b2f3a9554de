package client

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	api "github.com/oshokin/contact-ringer/internal/api/grpc/ringer"
	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/repository/contacts"
	"github.com/oshokin/contact-ringer/internal/service/common"
)

// stubService is a minimal api.Service with one active session.
type stubService struct {
	contacts []*ringer.Contact
	events   []any
}

func (s *stubService) Status(context.Context) engine.Status {
	return engine.Status{
		State:     engine.SessionActive,
		SessionID: "b6e1",
		Since:     time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		Baseline:  &ringer.AudioBaseline{RingerMode: ringer.RingerModeSilent, InterruptionFilter: ringer.FilterPriority},
		Contact:   s.contacts[0],
	}
}

func (*stubService) QueuedEvents() int { return 0 }

func (s *stubService) Apply(_ context.Context, name string) (*ringer.Contact, error) {
	for _, c := range s.contacts {
		if c.Name == name {
			return c, nil
		}
	}

	return nil, contacts.ErrNotFound
}

func (*stubService) Reset(context.Context) error { return nil }

func (*stubService) ScheduleReset(context.Context, time.Duration) {}

func (s *stubService) Submit(_ context.Context, event any) error {
	s.events = append(s.events, event)

	return nil
}

func (s *stubService) UpsertContact(_ context.Context, c *ringer.Contact) error {
	s.contacts = append(s.contacts, c)

	return nil
}

func (*stubService) DeleteContact(context.Context, string) error { return nil }

func (s *stubService) ListContacts(context.Context) ([]*ringer.Contact, error) {
	return s.contacts, nil
}

// openSession serves svc on an in-memory listener and opens a session against it.
func openSession(t *testing.T, svc api.Service) (*Session, *bytes.Buffer) {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	api.RegisterRingerServiceServer(server, api.NewServer(svc))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, &config.Config{ServerAddress: "127.0.0.1:7711"}))

	out := new(bytes.Buffer)

	session, err := Open(context.Background(), &Options{
		ConfigPath:    cfgPath,
		ServerAddress: "passthrough:///bufnet",
		Out:           out,
		ClientOptions: []common.Option{common.WithDialOptions(
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return listener.DialContext(ctx)
			}),
		)},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = session.Close() })

	return session, out
}

// TestSession_Status prints the session, contact and baseline.
func TestSession_Status(t *testing.T) {
	t.Parallel()

	session, out := openSession(t, &stubService{contacts: []*ringer.Contact{ringer.NewContact("Alice", "5551234567")}})

	require.NoError(t, session.Status(context.Background()))
	require.Contains(t, out.String(), "active")
	require.Contains(t, out.String(), "b6e1")
	require.Contains(t, out.String(), "Alice (5551234567, volume 100%, ringtone -)")
	require.Contains(t, out.String(), "mode=silent")
	require.Contains(t, out.String(), "dnd=priority")
}

// TestSession_Contacts adds and lists contacts.
func TestSession_Contacts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	session, out := openSession(t, &stubService{})

	require.NoError(t, session.AddContact(ctx, &ringer.Contact{Name: "Bob", Number: "556", OnlyVibrate: true, VolumePercent: 100}))
	require.Contains(t, out.String(), "Contact saved: Bob (556, vibrate only")

	out.Reset()
	require.NoError(t, session.ListContacts(ctx))
	require.Contains(t, out.String(), "NAME")
	require.Contains(t, out.String(), "Bob")

	require.Error(t, session.Apply(ctx, "Nobody"))
}

// TestSession_Events posts host events.
func TestSession_Events(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := &stubService{}
	session, _ := openSession(t, svc)

	require.NoError(t, session.PostCallState(ctx, "RINGING", "5551234567"))
	require.NoError(t, session.PostSMS(ctx, "Alice", "hi"))
	require.NoError(t, session.PostNotification(ctx, "com.example.sms", "k1", []string{"android.title=Alice"}))
	require.NoError(t, session.RemoveNotification(ctx, "com.example.sms", "k1"))
	require.Error(t, session.PostCallState(ctx, "dialing", ""))
	require.Error(t, session.PostNotification(ctx, "com.example.sms", "k2", []string{"broken"}))

	require.Len(t, svc.events, 4)
}

// TestParseExtras splits key=value pairs at the first equals sign.
func TestParseExtras(t *testing.T) {
	t.Parallel()

	extras, err := ParseExtras([]string{"android.title=Alice", "android.callPerson.uri=tel:+1=2"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"android.title": "Alice", "android.callPerson.uri": "tel:+1=2"}, extras)

	_, err = ParseExtras([]string{"=value"})
	require.Error(t, err)
}
