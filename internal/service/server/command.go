package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mitchellh/go-ps"
	"google.golang.org/grpc"

	"github.com/oshokin/contact-ringer/internal/api/grpc/ringer"
	"github.com/oshokin/contact-ringer/internal/audio"
	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/correlator/call"
	"github.com/oshokin/contact-ringer/internal/correlator/notify"
	"github.com/oshokin/contact-ringer/internal/engine"
	"github.com/oshokin/contact-ringer/internal/events"
	"github.com/oshokin/contact-ringer/internal/logger"
	"github.com/oshokin/contact-ringer/internal/repository/callstate"
	"github.com/oshokin/contact-ringer/internal/repository/contacts"
	"github.com/oshokin/contact-ringer/internal/tone"
	"github.com/oshokin/contact-ringer/internal/version"
)

// Options controls the ringer-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the call-state file from the settings.
	StateFile string
	// LogLevel overrides the log level from the settings.
	LogLevel string
	// AllowMultiple skips the single-instance check.
	AllowMultiple bool
}

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// errInvalidLogLevel is returned for an unknown log level.
	errInvalidLogLevel = errors.New("invalid log level")
)

// Run starts the daemon and blocks until ctx is canceled or the gRPC server stops.
func Run(ctx context.Context, opts *Options) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	ctx, err = configureLogger(ctx, settings, opts.LogLevel)
	if err != nil {
		return err
	}

	defer logger.FromContext(ctx).Sync() //nolint:errcheck // stdout sync errors are not actionable.

	ctx = logger.WithName(ctx, "ringer-server")

	if !opts.AllowMultiple {
		if err = ensureSingleInstance(currentExecutable(), ps.Processes); err != nil {
			return err
		}
	}

	if opts.StateFile != "" {
		settings.CallStateFile = opts.StateFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	d, err := newDaemon(ctx, settings)
	if err != nil {
		return err
	}

	defer d.close(ctx)

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Ringer server listening",
		"version", version.Full(),
		"listen_address", listenAddress,
		"audio_backend", settings.Audio.Backend,
		"contacts_dir", settings.ContactsDir,
		"call_state_file", settings.CallStateFile,
	)

	return d.serve(ctx, lis)
}

// configureLogger attaches a logger in the configured format to ctx and applies
// the level from the settings or the override.
func configureLogger(ctx context.Context, settings *config.Config, override string) (context.Context, error) {
	levelName := settings.LogLevel
	if override != "" {
		levelName = override
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return ctx, fmt.Errorf("%w: %q", errInvalidLogLevel, levelName)
	}

	logger.SetLevel(level)

	return logger.ToContext(ctx, logger.New(logger.AtomicLevel(), logger.ParseFormat(settings.LogFormat))), nil
}

// daemon holds the wired components of a running server.
type daemon struct {
	store         *contacts.Store
	closePort     func()
	engine        *engine.Engine
	notifications *notify.Correlator
	dispatcher    *events.Dispatcher
	grpc          *grpc.Server
}

// newDaemon opens the stores and the audio backend and wires the components.
func newDaemon(ctx context.Context, settings *config.Config) (*daemon, error) {
	store, err := contacts.Open(contacts.Options{
		Dir:    settings.ContactsDir,
		Logger: contacts.NewZapLogger(logger.FromContext(logger.WithName(ctx, "badger"))),
	})
	if err != nil {
		return nil, err
	}

	port, player, closePort, err := openAudio(settings.Audio)
	if err != nil {
		_ = store.Close()

		return nil, err
	}

	guarded := audio.NewGuard(port, settings.Audio.Timeout)
	eng := engine.New(guarded)

	calls := call.NewCorrelator(
		logger.WithName(ctx, "call"),
		eng,
		store,
		callstate.NewFileRepository(settings.CallStateFile),
	)

	var defaultTone *string
	if settings.Notify.DefaultTone != "" {
		defaultTone = &settings.Notify.DefaultTone
	}

	notifications := notify.NewCorrelator(notify.Settings{
		SMSPackage:      settings.Notify.SMSPackage,
		CallUIPackage:   settings.Notify.CallUIPackage,
		SMSCooldown:     settings.Notify.SMSCooldown,
		SMSRingDuration: settings.Notify.SMSRingDuration,
		CallUIDelay:     settings.Notify.CallUIDelay,
		ToneDelay:       settings.Notify.ToneDelay,
		DefaultTone:     defaultTone,
	}, eng, store, player)

	dispatcher := events.NewDispatcher(settings.Events.QueueSize, calls, notifications)

	grpcServer := grpc.NewServer()
	ringer.RegisterRingerServiceServer(grpcServer, ringer.NewServer(newService(eng, store, dispatcher)))

	return &daemon{
		store:         store,
		closePort:     closePort,
		engine:        eng,
		notifications: notifications,
		dispatcher:    dispatcher,
		grpc:          grpcServer,
	}, nil
}

// openAudio connects the configured audio backend and its tone player.
//
//nolint:ireturn // The backend is selected at runtime.
func openAudio(settings config.Audio) (audio.Port, tone.Player, func(), error) {
	switch settings.Backend {
	case config.BackendPulse:
		port, err := audio.NewPulse(audio.PulseOptions{
			Sink:            settings.PulseSink,
			DefaultRingtone: settings.DefaultRingtone,
		})
		if err != nil {
			return nil, nil, nil, err
		}

		return port, tone.NewPulsePlayer(), port.Close, nil
	default:
		device := audio.DefaultDevice()
		if settings.DefaultRingtone != "" {
			ringtone := settings.DefaultRingtone
			device.Ringtone = &ringtone
		}

		return audio.NewMemory(device), tone.LogPlayer{}, func() {}, nil
	}
}

// serve runs the dispatcher and the gRPC server until ctx is done.
func (d *daemon) serve(ctx context.Context, lis net.Listener) error {
	dispatcherDone := make(chan struct{})

	go func() {
		defer close(dispatcherDone)

		d.dispatcher.Run(ctx)
	}()

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		d.grpc.GracefulStop()
		close(done)
	}()

	if err := d.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	<-dispatcherDone
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// close restores any active override and releases the backends.
func (d *daemon) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	d.notifications.Close()

	if err := d.engine.Reset(ctx); err != nil {
		logger.WarnKV(ctx, "Final reset failed", "error", err)
	}

	d.closePort()

	if err := d.store.Close(); err != nil {
		logger.WarnKV(ctx, "Contact database not closed cleanly", "error", err)
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
