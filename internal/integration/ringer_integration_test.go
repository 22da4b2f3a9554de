package integration

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/service/common"
	"github.com/oshokin/contact-ringer/internal/service/server"
)

// reserveAddress returns a free loopback address.
func reserveAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// startServer runs ringer-server with the in-memory audio backend.
// Returns a stop function that waits for the daemon to shut down.
func startServer(t *testing.T, addr, dir string) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cfgPath := filepath.Join(dir, "settings.yaml")

	require.NoError(t, config.Save(cfgPath, &config.Config{
		ServerAddress: addr,
		Timeout:       5 * time.Second,
		ContactsDir:   filepath.Join(dir, "contacts"),
		CallStateFile: filepath.Join(dir, "call-state.bin"),
		LogLevel:      "warn",
		Audio:         config.Audio{Backend: config.BackendMemory},
	}))

	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath, AllowMultiple: true})
	}()

	// Wait for the daemon to accept connections.
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, 5*time.Second, 20*time.Millisecond)

	return func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	}
}

// waitForState polls the server until the engine reaches want.
func waitForState(t *testing.T, c *common.Client, want engine.SessionState) {
	t.Helper()

	require.Eventually(t, func() bool {
		report, err := c.Status(context.Background())

		return err == nil && report.State == string(want)
	}, 3*time.Second, 10*time.Millisecond)
}

// TestRinger_CallLifecycle designates a contact, rings, hangs up and checks the baseline is restored.
func TestRinger_CallLifecycle(t *testing.T) {
	t.Parallel()

	addr := reserveAddress(t)
	dir := t.TempDir()

	stop := startServer(t, addr, dir)
	defer stop()

	ctx := context.Background()

	c, err := common.Dial(ctx, addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	alice := ringer.NewContact("Alice", "+1 (555) 123-4567")
	alice.VolumePercent = 60

	_, err = c.UpsertContact(ctx, alice)
	require.NoError(t, err)

	list, err := c.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Unknown callers leave the device alone.
	require.NoError(t, c.PostCallState(ctx, ringer.CallPhaseRinging, "5550000000"))
	require.NoError(t, c.PostCallState(ctx, ringer.CallPhaseIdle, ""))
	waitForState(t, c, engine.SessionIdle)

	require.NoError(t, c.PostCallState(ctx, ringer.CallPhaseRinging, "5551234567"))
	waitForState(t, c, engine.SessionActive)

	report, err := c.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.Contact)
	require.Equal(t, "Alice", report.Contact.Name)
	require.NotNil(t, report.Baseline)
	require.Equal(t, 5, report.Baseline.RingVolume)
	require.NotEmpty(t, report.SessionID)

	require.NoError(t, c.PostCallState(ctx, ringer.CallPhaseOffhook, ""))
	require.NoError(t, c.PostCallState(ctx, ringer.CallPhaseIdle, ""))
	waitForState(t, c, engine.SessionIdle)

	report, err = c.Status(ctx)
	require.NoError(t, err)
	require.Nil(t, report.Baseline)

	// The call-correlation record is written to disk.
	_, err = os.Stat(filepath.Join(dir, "call-state.bin"))
	require.NoError(t, err)
}

// TestRinger_ManualOverride applies by name and restores through a scheduled reset.
func TestRinger_ManualOverride(t *testing.T) {
	t.Parallel()

	addr := reserveAddress(t)

	stop := startServer(t, addr, t.TempDir())
	defer stop()

	ctx := context.Background()

	c, err := common.Dial(ctx, addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	bob := ringer.NewContact("Bob", "5559876543")
	bob.OnlyVibrate = true

	_, err = c.UpsertContact(ctx, bob)
	require.NoError(t, err)

	_, err = c.Apply(ctx, "nobody")
	require.Error(t, err)

	applied, err := c.Apply(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, "Bob", applied.Name)

	report, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, string(engine.SessionActive), report.State)

	require.NoError(t, c.ScheduleReset(ctx, 50*time.Millisecond))
	waitForState(t, c, engine.SessionIdle)

	// A second reset is a no-op.
	require.NoError(t, c.Reset(ctx))
	require.NoError(t, c.DeleteContact(ctx, "Bob"))

	list, err := c.ListContacts(ctx)
	require.NoError(t, err)
	require.Empty(t, list)
}

// TestRinger_SMSOverride texts from a designated contact and waits for the ring window to close.
func TestRinger_SMSOverride(t *testing.T) {
	t.Parallel()

	addr := reserveAddress(t)

	stop := startServer(t, addr, t.TempDir())
	defer stop()

	ctx := context.Background()

	c, err := common.Dial(ctx, addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	_, err = c.UpsertContact(ctx, ringer.NewContact("Carol", "5551112222"))
	require.NoError(t, err)

	require.NoError(t, c.PostSMS(ctx, "Carol", "ping"))
	waitForState(t, c, engine.SessionActive)

	require.Eventually(t, func() bool {
		report, err := c.Status(ctx)

		return err == nil && report.State == string(engine.SessionIdle)
	}, config.DefaultSMSRingDuration+2*time.Second, 50*time.Millisecond)
}
