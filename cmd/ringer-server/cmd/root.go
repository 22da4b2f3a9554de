package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/service/server"
	"github.com/oshokin/contact-ringer/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where the call-correlation record is persisted.
	stateFile string
	// logLevel overrides the level from the configuration file.
	logLevel string
	// allowMultiple disables the single-instance check.
	allowMultiple bool

	// rootCmd represents the base command for running the ringer daemon.
	rootCmd = &cobra.Command{
		Use:   "ringer-server [listen-address]",
		Short: "Run the contact ringer daemon.",
		Long: `Starts the daemon that lets designated contacts ring through silent and do-not-disturb.

The daemon captures the audio configuration when a designated contact calls or texts,
overrides it for that contact and restores it once the event ends.
Host events and control requests arrive over gRPC.
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:8080).
The call-correlation record is persisted so an override survives a daemon restart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				LogLevel:      logLevel,
				AllowMultiple: allowMultiple,
			})
		},
	}
)

// Execute runs the ringer-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "path to persist call-correlation state (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	rootCmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "start even if another ringer-server is running")

	err := rootCmd.Flags().MarkHidden("allow-multiple")
	if err != nil {
		panic(err)
	}
}
