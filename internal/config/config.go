package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the ringer binaries.
type Config struct {
	// ServerAddress is the gRPC address of the ringer-server control API.
	ServerAddress string `yaml:"server_addr"`
	// Timeout is the duration for RPC calls made by ringer-ctl.
	Timeout time.Duration `yaml:"timeout"`
	// ContactsDir is the directory of the contact directory database.
	ContactsDir string `yaml:"contacts_dir"`
	// CallStateFile is the path of the persisted call-correlation record.
	CallStateFile string `yaml:"call_state_file"`
	// LogLevel is the minimum level of log output.
	LogLevel string `yaml:"log_level"`
	// LogFormat selects "console" or "json" log output.
	LogFormat string `yaml:"log_format"`
	// Audio configures the device audio backend.
	Audio Audio `yaml:"audio"`
	// Notify configures the notification and SMS correlator.
	Notify Notify `yaml:"notify"`
	// Events configures the host event queue.
	Events Events `yaml:"events"`
}

// Audio configures the audio/policy port.
type Audio struct {
	// Backend is "memory" (simulated device) or "pulse" (PulseAudio sink).
	Backend string `yaml:"backend"`
	// Timeout bounds every single audio port call.
	Timeout time.Duration `yaml:"timeout"`
	// PulseSink is the sink driven by the pulse backend, empty for the default sink.
	PulseSink string `yaml:"pulse_sink"`
	// DefaultRingtone is the ringtone reported by the pulse backend before any override.
	DefaultRingtone string `yaml:"default_ringtone"`
}

// Notify configures the notification correlator.
type Notify struct {
	// SMSPackage is the package id of the default SMS application.
	SMSPackage string `yaml:"sms_package"`
	// CallUIPackage is the package id of the vendor in-call UI.
	CallUIPackage string `yaml:"call_ui_package"`
	// SMSCooldown is the window after a handled SMS during which further SMS are ignored.
	SMSCooldown time.Duration `yaml:"sms_cooldown"`
	// SMSRingDuration is how long an SMS override stays applied.
	SMSRingDuration time.Duration `yaml:"sms_ring_duration"`
	// CallUIDelay is the pause before a call-UI notification applies an override.
	CallUIDelay time.Duration `yaml:"call_ui_delay"`
	// ToneDelay is the pause before the substitution SMS tone is played.
	ToneDelay time.Duration `yaml:"tone_delay"`
	// DefaultTone is the tone file played for contacts without a custom ringtone.
	// Empty means the built-in synthesized cue.
	DefaultTone string `yaml:"default_tone"`
}

// Events configures the host event queue.
type Events struct {
	// QueueSize is the capacity of the bounded event queue.
	QueueSize int `yaml:"queue_size"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "contact-ringer-settings.yaml"

	// DefaultCallStateFilename is the default filename for the call-correlation record.
	DefaultCallStateFilename = "contact-ringer-call-state.bin"

	// DefaultContactsDir is the default directory of the contact directory database.
	DefaultContactsDir = "contact-ringer-contacts"

	// DefaultTimeout is the default duration for RPC calls.
	DefaultTimeout = 5 * time.Second

	// DefaultAudioTimeout bounds a single audio port call.
	DefaultAudioTimeout = 2 * time.Second

	// DefaultSMSCooldown is the window after a handled SMS during which further SMS are ignored.
	DefaultSMSCooldown = 2 * time.Second

	// DefaultSMSRingDuration is how long an SMS override stays applied.
	DefaultSMSRingDuration = 3 * time.Second

	// DefaultCallUIDelay is the pause before a call-UI notification applies an override.
	DefaultCallUIDelay = time.Second

	// DefaultToneDelay is the pause before the substitution SMS tone is played.
	DefaultToneDelay = 100 * time.Millisecond

	// DefaultSMSPackage is the package id of the stock SMS application.
	DefaultSMSPackage = "com.google.android.apps.messaging"

	// DefaultCallUIPackage is the package id of the vendor in-call UI.
	DefaultCallUIPackage = "com.samsung.android.incallui"

	// DefaultQueueSize is the capacity of the host event queue.
	DefaultQueueSize = 64

	// BackendMemory simulates a device in memory.
	BackendMemory = "memory"

	// BackendPulse drives a PulseAudio sink.
	BackendPulse = "pulse"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
	// errUnknownBackend is returned for an unsupported audio backend.
	errUnknownBackend = errors.New("unknown audio backend")
	// errNegativeDuration is returned when a timing is negative.
	errNegativeDuration = errors.New("duration must not be negative")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.ContactsDir == "" {
		settings.ContactsDir = DefaultContactsDir
	}

	if settings.CallStateFile == "" {
		settings.CallStateFile = DefaultCallStateFilename
	}

	if err := validateAudio(&settings.Audio); err != nil {
		return err
	}

	if err := validateNotify(&settings.Notify); err != nil {
		return err
	}

	if settings.Events.QueueSize <= 0 {
		settings.Events.QueueSize = DefaultQueueSize
	}

	return nil
}

// validateAudio checks the audio section and fills in defaults.
func validateAudio(audio *Audio) error {
	audio.Backend = strings.ToLower(strings.TrimSpace(audio.Backend))

	switch audio.Backend {
	case "":
		audio.Backend = BackendMemory
	case BackendMemory, BackendPulse:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, audio.Backend)
	}

	if audio.Timeout <= 0 {
		audio.Timeout = DefaultAudioTimeout
	}

	return nil
}

// validateNotify checks the notify section and fills in defaults.
// A zero duration selects the default; a negative one is rejected.
func validateNotify(notify *Notify) error {
	timings := []struct {
		name  string
		value *time.Duration
		def   time.Duration
	}{
		{"sms_cooldown", &notify.SMSCooldown, DefaultSMSCooldown},
		{"sms_ring_duration", &notify.SMSRingDuration, DefaultSMSRingDuration},
		{"call_ui_delay", &notify.CallUIDelay, DefaultCallUIDelay},
		{"tone_delay", &notify.ToneDelay, DefaultToneDelay},
	}

	for _, timing := range timings {
		switch {
		case *timing.value < 0:
			return fmt.Errorf("notify.%s: %w", timing.name, errNegativeDuration)
		case *timing.value == 0:
			*timing.value = timing.def
		}
	}

	if notify.SMSPackage == "" {
		notify.SMSPackage = DefaultSMSPackage
	}

	if notify.CallUIPackage == "" {
		notify.CallUIPackage = DefaultCallUIPackage
	}

	return nil
}
