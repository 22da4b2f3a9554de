package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oshokin/contact-ringer/internal/service/client"
)

var (
	eventCmd = &cobra.Command{
		Use:   "event",
		Short: "Inject host events into the daemon.",
	}

	eventCallCmd = &cobra.Command{
		Use:     "call PHASE [NUMBER]",
		Short:   "Report a telephony state change (idle, ringing, offhook).",
		Example: "  ringer-ctl event call ringing +15551234567",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var number string
			if len(args) > 1 {
				number = args[1]
			}

			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.PostCallState(ctx, args[0], number)
			})
		},
	}

	eventSMSCmd = &cobra.Command{
		Use:   "sms SENDER [BODY]",
		Short: "Report an incoming SMS.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body string
			if len(args) > 1 {
				body = args[1]
			}

			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.PostSMS(ctx, args[0], body)
			})
		},
	}

	eventNotifyPostCmd = &cobra.Command{
		Use:     "notify-post PACKAGE KEY [EXTRA=VALUE...]",
		Short:   "Report a posted notification.",
		Example: "  ringer-ctl event notify-post com.samsung.android.incallui 0|call android.callPerson.uri=tel:+15551234567",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.PostNotification(ctx, args[0], args[1], args[2:])
			})
		},
	}

	eventNotifyRemoveCmd = &cobra.Command{
		Use:   "notify-remove PACKAGE KEY",
		Short: "Report a removed notification.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.RemoveNotification(ctx, args[0], args[1])
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	eventCmd.AddCommand(eventCallCmd, eventSMSCmd, eventNotifyPostCmd, eventNotifyRemoveCmd)
	rootCmd.AddCommand(eventCmd)
}
