package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/contact-ringer/internal/service/client"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the override session and the captured baseline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Status(ctx)
			})
		},
	}

	applyCmd = &cobra.Command{
		Use:   "apply NAME",
		Short: "Apply the override of a designated contact.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Apply(ctx, args[0])
			})
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Restore the captured audio configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.Reset(ctx)
			})
		},
	}

	scheduleResetCmd = &cobra.Command{
		Use:     "schedule-reset DURATION",
		Short:   "Restore the captured audio configuration after a delay.",
		Example: "  ringer-ctl schedule-reset 3s",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delay, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("parse delay: %w", err)
			}

			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.ScheduleReset(ctx, delay)
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd, applyCmd, resetCmd, scheduleResetCmd)
}
