package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/logger"
	"github.com/oshokin/contact-ringer/internal/service/common"
)

// Options configures the connection of ringer-ctl.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Out receives the command output, os.Stdout when nil.
	Out io.Writer
	// ClientOptions are passed to common.Dial after the defaults.
	ClientOptions []common.Option
}

// Session is an open connection to ringer-server.
type Session struct {
	client *common.Client
	out    io.Writer
}

// Open loads the settings and connects to the server.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOptions := []common.Option{common.WithCallTimeout(cfg.Timeout)}

	// Identify current user and hostname for the server's audit log.
	if actor, actorErr := common.DetectActor(); actorErr == nil {
		clientOptions = append(clientOptions, common.WithActor(actor))
	} else {
		logger.WarnKV(ctx, "Unable to detect actor", "error", actorErr)
	}

	client, err := common.Dial(ctx, serverAddress, append(clientOptions, opts.ClientOptions...)...)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &Session{client: client, out: out}, nil
}

// Close releases the connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Status prints the engine status.
func (s *Session) Status(ctx context.Context) error {
	report, err := s.client.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "state:\t%s\n", report.State)

	if report.SessionID != "" {
		_, _ = fmt.Fprintf(w, "session:\t%s\n", report.SessionID)
		_, _ = fmt.Fprintf(w, "since:\t%s\n", report.Since.Local().Format(time.RFC3339))
	}

	if report.Contact != nil {
		_, _ = fmt.Fprintf(w, "contact:\t%s\n", formatContact(report.Contact))
	}

	if b := report.Baseline; b != nil {
		_, _ = fmt.Fprintf(w, "baseline:\tmode=%s ring=%d notification=%d system=%d dnd=%s ringtone=%s\n",
			b.RingerMode, b.RingVolume, b.NotificationVolume, b.SystemVolume, b.InterruptionFilter, orNone(b.Ringtone))
	}

	_, _ = fmt.Fprintf(w, "pending resets:\t%d\n", report.PendingResets)
	_, _ = fmt.Fprintf(w, "queued events:\t%d\n", report.QueuedEvents)

	return w.Flush()
}

// Apply overrides the device for the named contact.
func (s *Session) Apply(ctx context.Context, name string) error {
	contact, err := s.client.Apply(ctx, name)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "Override applied: %s\n", formatContact(contact))

	return err
}

// Reset restores the baseline.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.client.Reset(ctx); err != nil {
		return err
	}

	_, err := fmt.Fprintln(s.out, "Audio configuration restored")

	return err
}

// ScheduleReset arms a reset after delay.
func (s *Session) ScheduleReset(ctx context.Context, delay time.Duration) error {
	if err := s.client.ScheduleReset(ctx, delay); err != nil {
		return err
	}

	_, err := fmt.Fprintf(s.out, "Reset scheduled in %s\n", delay)

	return err
}

// ListContacts prints the designated contacts as a table.
func (s *Session) ListContacts(ctx context.Context) error {
	list, err := s.client.ListContacts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tNUMBER\tVOLUME\tVIBRATE ONLY\tRINGTONE")

	for _, c := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d%%\t%t\t%s\n", c.Name, c.Number, c.VolumePercent, c.OnlyVibrate, orNone(c.Ringtone))
	}

	return w.Flush()
}

// AddContact designates a contact.
func (s *Session) AddContact(ctx context.Context, contact *ringer.Contact) error {
	stored, err := s.client.UpsertContact(ctx, contact)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "Contact saved: %s\n", formatContact(stored))

	return err
}

// RemoveContact removes a designated contact.
func (s *Session) RemoveContact(ctx context.Context, name string) error {
	if err := s.client.DeleteContact(ctx, name); err != nil {
		return err
	}

	_, err := fmt.Fprintf(s.out, "Contact removed: %s\n", name)

	return err
}

// PostCallState reports a telephony phase change.
func (s *Session) PostCallState(ctx context.Context, phase, number string) error {
	parsed, err := ringer.ParseCallPhase(phase)
	if err != nil {
		return err
	}

	return s.client.PostCallState(ctx, parsed, number)
}

// PostSMS reports an incoming SMS.
func (s *Session) PostSMS(ctx context.Context, sender, body string) error {
	return s.client.PostSMS(ctx, sender, body)
}

// PostNotification reports a posted notification. Extras are given as key=value pairs.
func (s *Session) PostNotification(ctx context.Context, pkg, key string, extras []string) error {
	parsed, err := ParseExtras(extras)
	if err != nil {
		return err
	}

	return s.client.PostNotification(ctx, pkg, key, parsed)
}

// RemoveNotification reports a removed notification.
func (s *Session) RemoveNotification(ctx context.Context, pkg, key string) error {
	return s.client.RemoveNotification(ctx, pkg, key)
}

// ParseExtras converts key=value pairs into a map.
func ParseExtras(pairs []string) (map[string]string, error) {
	extras := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid extra %q, want key=value", pair)
		}

		extras[key] = value
	}

	return extras, nil
}

// formatContact renders a contact on one line.
func formatContact(c *ringer.Contact) string {
	if c == nil {
		return "<none>"
	}

	policy := fmt.Sprintf("volume %d%%", c.VolumePercent)
	if c.OnlyVibrate {
		policy = "vibrate only"
	}

	return fmt.Sprintf("%s (%s, %s, ringtone %s)", c.Name, c.Number, policy, orNone(c.Ringtone))
}

// orNone dereferences an optional string.
func orNone(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}

	return *s
}
