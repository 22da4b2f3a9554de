package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
	"github.com/oshokin/contact-ringer/internal/service/client"
)

var (
	// contactVolume is the ring volume percent for contacts add.
	contactVolume int
	// contactRingtone is the optional ringtone for contacts add.
	contactRingtone string
	// contactOnlyVibrate selects vibration instead of ringing.
	contactOnlyVibrate bool

	contactsCmd = &cobra.Command{
		Use:   "contacts",
		Short: "Manage designated contacts.",
	}

	contactsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List designated contacts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.ListContacts(ctx)
			})
		},
	}

	contactsAddCmd = &cobra.Command{
		Use:     "add NAME NUMBER",
		Short:   "Designate a contact or update its policy.",
		Example: "  ringer-ctl contacts add Alice +15551234567 --volume 80",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contact := ringer.NewContact(args[0], args[1])
			contact.VolumePercent = contactVolume
			contact.OnlyVibrate = contactOnlyVibrate

			if contactRingtone != "" {
				contact.Ringtone = &contactRingtone
			}

			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.AddContact(ctx, contact)
			})
		},
	}

	contactsRemoveCmd = &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a designated contact.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *client.Session) error {
				return s.RemoveContact(ctx, args[0])
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	contactsAddCmd.Flags().IntVar(&contactVolume, "volume", ringer.DefaultVolumePercent, "ring volume in percent of the maximum")
	contactsAddCmd.Flags().StringVar(&contactRingtone, "ringtone", "", "ringtone URI or file to use for this contact")
	contactsAddCmd.Flags().BoolVar(&contactOnlyVibrate, "only-vibrate", false, "vibrate instead of ringing")

	contactsCmd.AddCommand(contactsListCmd, contactsAddCmd, contactsRemoveCmd)
	rootCmd.AddCommand(contactsCmd)
}
