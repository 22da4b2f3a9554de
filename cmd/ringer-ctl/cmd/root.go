package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/contact-ringer/internal/config"
	"github.com/oshokin/contact-ringer/internal/service/client"
	"github.com/oshokin/contact-ringer/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the server address from the configuration file.
	serverAddress string

	// rootCmd represents the base command for controlling the ringer daemon.
	rootCmd = &cobra.Command{
		Use:   "ringer-ctl",
		Short: "Control the contact ringer daemon.",
		Long: `Inspects and controls a running ringer-server.

Manages designated contacts, applies or restores an override by hand
and injects host events (call state changes, SMS, notifications) for testing a setup.
Server address can be provided with --server or loaded from configuration file.`,
		SilenceUsage: true,
	}
)

// Execute runs the ringer-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withSession opens a connection for a single subcommand run.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *client.Session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	session, err := client.Open(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
		Out:           cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	defer session.Close() //nolint:errcheck // the process exits right after.

	return fn(ctx, session)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&serverAddress, "server", "", "server address (overrides config)")
}
