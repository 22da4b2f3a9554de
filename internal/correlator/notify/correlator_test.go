package notify

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

const (
	smsPackage    = "com.example.sms"
	callUIPackage = "com.example.incallui"
)

// recordingEngine records the calls made by the correlator.
type recordingEngine struct {
	mu        sync.Mutex
	applied   []string
	resets    int
	scheduled []time.Duration
}

// Apply records the contact name.
func (r *recordingEngine) Apply(_ context.Context, contact *ringer.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applied = append(r.applied, contact.Name)

	return nil
}

// Reset counts resets.
func (r *recordingEngine) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resets++

	return nil
}

// ScheduleReset records the delay.
func (r *recordingEngine) ScheduleReset(_ context.Context, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scheduled = append(r.scheduled, delay)
}

func (r *recordingEngine) snapshot() ([]string, int, []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.applied...), r.resets, append([]time.Duration(nil), r.scheduled...)
}

// listDirectory is a Directory over a fixed list.
type listDirectory []*ringer.Contact

// FindByNumber implements contacts.Directory.
func (l listDirectory) FindByNumber(_ context.Context, number string) (*ringer.Contact, error) {
	for _, c := range l {
		if ringer.MatchesNumber(number, c.Number) {
			return c, nil
		}
	}

	return nil, nil
}

// FindByName implements contacts.Directory.
func (l listDirectory) FindByName(_ context.Context, name string) (*ringer.Contact, error) {
	for _, c := range l {
		if ringer.SameName(c.Name, name) {
			return c, nil
		}
	}

	return nil, nil
}

// ListDesignated implements contacts.Directory.
func (l listDirectory) ListDesignated(context.Context) ([]*ringer.Contact, error) {
	return l, nil
}

// recordingPlayer records played tones with their time.
type recordingPlayer struct {
	mu     sync.Mutex
	played []string
	at     []time.Time
}

// Play records the tone reference.
func (p *recordingPlayer) Play(_ context.Context, ringtone *string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ref := "cue"
	if ringtone != nil {
		ref = *ringtone
	}

	p.played = append(p.played, ref)
	p.at = append(p.at, time.Now())

	return nil
}

func (p *recordingPlayer) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.played...)
}

func (p *recordingPlayer) firstAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.at[0]
}

func strPtr(s string) *string {
	return &s
}

func testDirectory() listDirectory {
	alice := ringer.NewContact("Alice", "+1 555 123 4567")
	alice.Ringtone = strPtr("/tones/alice.ogg")

	bob := ringer.NewContact("Bob", "5559876543")

	vera := ringer.NewContact("Vera", "5550001111")
	vera.OnlyVibrate = true

	return listDirectory{alice, bob, vera}
}

func testSettings() Settings {
	return Settings{
		SMSPackage:      smsPackage,
		CallUIPackage:   callUIPackage,
		SMSCooldown:     2 * time.Second,
		SMSRingDuration: 3 * time.Second,
		CallUIDelay:     time.Second,
		ToneDelay:       100 * time.Millisecond,
		DefaultTone:     strPtr("/tones/default.ogg"),
	}
}

func newTestCorrelator() (*Correlator, *recordingEngine, *recordingPlayer) {
	engine := &recordingEngine{}
	player := &recordingPlayer{}

	return NewCorrelator(testSettings(), engine, testDirectory(), player), engine, player
}

func smsNotification(key, sender string) Posted {
	return Posted{Package: smsPackage, Key: key, Extras: map[string]string{ExtraTitle: sender}}
}

// TestCorrelator_SMSFromContact applies, plays the contact tone after the delay and schedules a reset.
func TestCorrelator_SMSFromContact(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, player := newTestCorrelator()
		start := time.Now()

		require.NoError(t, c.HandlePosted(ctx, smsNotification("sms-1", "Alice")))

		applied, _, scheduled := engine.snapshot()
		require.Equal(t, []string{"Alice"}, applied)
		require.Equal(t, []time.Duration{3 * time.Second}, scheduled)
		require.Empty(t, player.snapshot())

		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, []string{"/tones/alice.ogg"}, player.snapshot())
		require.Equal(t, 100*time.Millisecond, player.firstAt().Sub(start))
	})
}

// TestCorrelator_SMSByNumber resolves a numeric sender and plays the default tone.
func TestCorrelator_SMSByNumber(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c, engine, player := newTestCorrelator()

		require.NoError(t, c.HandleSMS(context.Background(), SMS{Sender: "+15559876543", Body: "hi"}))

		time.Sleep(time.Second)
		synctest.Wait()

		applied, _, _ := engine.snapshot()
		require.Equal(t, []string{"Bob"}, applied)
		require.Equal(t, []string{"/tones/default.ogg"}, player.snapshot())
	})
}

// TestCorrelator_SMSCooldown drops any SMS within the window, whoever sends it.
func TestCorrelator_SMSCooldown(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, _ := newTestCorrelator()

		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Alice"}))

		time.Sleep(time.Second)
		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Bob"}))

		time.Sleep(time.Second)
		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Bob"}))

		time.Sleep(time.Millisecond)
		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Bob"}))

		synctest.Wait()

		applied, _, _ := engine.snapshot()
		require.Equal(t, []string{"Alice", "Bob"}, applied)
	})
}

// TestCorrelator_SMSUnknownSender does not start the cooldown.
func TestCorrelator_SMSUnknownSender(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, _ := newTestCorrelator()

		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Delivery Service"}))
		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "+15550000000"}))
		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "alice"}))
		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Alice"}))
		synctest.Wait()

		applied, _, _ := engine.snapshot()
		require.Equal(t, []string{"Alice"}, applied)
	})
}

// TestCorrelator_SMSVibrateOnly skips the substitution tone.
func TestCorrelator_SMSVibrateOnly(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c, engine, player := newTestCorrelator()

		require.NoError(t, c.HandleSMS(context.Background(), SMS{Sender: "Vera"}))

		time.Sleep(time.Second)
		synctest.Wait()

		applied, _, scheduled := engine.snapshot()
		require.Equal(t, []string{"Vera"}, applied)
		require.Len(t, scheduled, 1)
		require.Empty(t, player.snapshot())
	})
}

// TestCorrelator_Dedup ignores a key until its notification is removed.
func TestCorrelator_Dedup(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, _ := newTestCorrelator()

		require.NoError(t, c.HandlePosted(ctx, smsNotification("sms-1", "Alice")))

		time.Sleep(5 * time.Second)
		require.NoError(t, c.HandlePosted(ctx, smsNotification("sms-1", "Alice")))

		applied, _, _ := engine.snapshot()
		require.Len(t, applied, 1)

		require.NoError(t, c.HandleRemoved(ctx, Removed{Package: smsPackage, Key: "sms-1"}))
		require.NoError(t, c.HandlePosted(ctx, smsNotification("sms-1", "Alice")))
		synctest.Wait()

		applied, resets, _ := engine.snapshot()
		require.Len(t, applied, 2)
		require.Zero(t, resets)
	})
}

// TestCorrelator_OtherPackage ignores unrelated notifications.
func TestCorrelator_OtherPackage(t *testing.T) {
	t.Parallel()

	c, engine, _ := newTestCorrelator()

	require.NoError(t, c.HandlePosted(context.Background(), Posted{
		Package: "com.example.chat",
		Key:     "chat-1",
		Extras:  map[string]string{ExtraTitle: "Alice"},
	}))

	applied, _, _ := engine.snapshot()
	require.Empty(t, applied)
}

// TestCorrelator_CallNotification applies after the delay and resets on removal.
func TestCorrelator_CallNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		extras  map[string]string
		contact string
	}{
		{
			name:    "tel uri",
			extras:  map[string]string{ExtraCallPersonURI: "tel:+1-555-123-4567"},
			contact: "Alice",
		},
		{
			name:    "unknown number falls back to name",
			extras:  map[string]string{ExtraCallPersonURI: "tel:000", ExtraCallPersonName: "bob"},
			contact: "Bob",
		},
		{
			name:    "name only",
			extras:  map[string]string{ExtraCallPersonName: "VERA"},
			contact: "Vera",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			synctest.Test(t, func(t *testing.T) {
				ctx := context.Background()
				c, engine, _ := newTestCorrelator()

				require.NoError(t, c.HandlePosted(ctx, Posted{Package: callUIPackage, Key: "call-1", Extras: tt.extras}))

				time.Sleep(999 * time.Millisecond)
				synctest.Wait()

				applied, _, _ := engine.snapshot()
				require.Empty(t, applied)

				time.Sleep(2 * time.Millisecond)
				synctest.Wait()

				applied, _, _ = engine.snapshot()
				require.Equal(t, []string{tt.contact}, applied)

				require.NoError(t, c.HandleRemoved(ctx, Removed{Package: callUIPackage, Key: "other"}))
				require.NoError(t, c.HandleRemoved(ctx, Removed{Package: callUIPackage, Key: "call-1"}))
				require.NoError(t, c.HandleRemoved(ctx, Removed{Package: callUIPackage, Key: "call-1"}))

				_, resets, _ := engine.snapshot()
				require.Equal(t, 1, resets)
			})
		})
	}
}

// TestCorrelator_CallNotificationRemovedEarly never applies a cancelled override.
func TestCorrelator_CallNotificationRemovedEarly(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, _ := newTestCorrelator()

		require.NoError(t, c.HandlePosted(ctx, Posted{
			Package: callUIPackage,
			Key:     "call-1",
			Extras:  map[string]string{ExtraCallPersonURI: "tel:5559876543"},
		}))

		time.Sleep(500 * time.Millisecond)
		require.NoError(t, c.HandleRemoved(ctx, Removed{Package: callUIPackage, Key: "call-1"}))

		time.Sleep(time.Second)
		synctest.Wait()

		applied, resets, _ := engine.snapshot()
		require.Empty(t, applied)
		require.Zero(t, resets)
	})
}

// TestCorrelator_CallNotificationUnknownCaller does nothing.
func TestCorrelator_CallNotificationUnknownCaller(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, _ := newTestCorrelator()

		require.NoError(t, c.HandlePosted(ctx, Posted{
			Package: callUIPackage,
			Key:     "call-1",
			Extras:  map[string]string{ExtraCallPersonURI: "tel:5550000000", ExtraCallPersonName: "Stranger"},
		}))
		require.NoError(t, c.HandlePosted(ctx, Posted{Package: callUIPackage, Key: "call-2"}))

		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.NoError(t, c.HandleRemoved(ctx, Removed{Package: callUIPackage, Key: "call-1"}))

		applied, resets, _ := engine.snapshot()
		require.Empty(t, applied)
		require.Zero(t, resets)
	})
}

// TestCorrelator_Close drops the delayed call override and the pending tone.
func TestCorrelator_Close(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		c, engine, player := newTestCorrelator()

		require.NoError(t, c.HandleSMS(ctx, SMS{Sender: "Alice"}))
		require.NoError(t, c.HandlePosted(ctx, Posted{
			Package: callUIPackage,
			Key:     "call-1",
			Extras:  map[string]string{ExtraCallPersonURI: "tel:5559876543"},
		}))

		c.Close()

		time.Sleep(2 * time.Second)
		synctest.Wait()

		applied, _, _ := engine.snapshot()
		require.Equal(t, []string{"Alice"}, applied)
		require.Empty(t, player.snapshot())
	})
}
