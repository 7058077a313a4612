package cli

import (
	"github.com/spf13/cobra"

	"github.com/tOgg1/discuss/internal/models"
)

func newReadCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [message-id...]",
		Short: "Mark inbox messages as read",
		Long: "Mark the given inbox messages as read. Without ids, mark every inbox\n" +
			"message as read, or only those of --channel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			channelArg, _ := cmd.Flags().GetString("channel")
			if channelArg != "" && len(args) > 0 {
				return Exitf(ExitCodeUsage, "--channel cannot be combined with message ids")
			}
			ids, err := parseMessageIDs(args)
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, cmd.ErrOrStderr(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			if len(ids) > 0 {
				if err := s.manager.MarkAsRead(ctx, ids); err != nil {
					return Exitf(ExitCodeFailure, "%v", err)
				}
				printf(cmd, "marked %d message(s) as read\n", len(ids))
				return nil
			}

			target := models.InboxChannelID
			if channelArg != "" {
				ch, err := resolveChannel(s.manager.Channels(), channelArg)
				if err != nil {
					return err
				}
				target = ch.ID
			}
			if err := s.manager.MarkAllAsRead(ctx, target, nil); err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			printf(cmd, "inbox cleared\n")
			return nil
		},
	}
	cmd.Flags().String("channel", "", "only mark messages of this channel")
	return cmd
}
