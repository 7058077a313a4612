package cli

import (
	"github.com/spf13/cobra"

	"github.com/tOgg1/discuss/internal/models"
)

func newChannelsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "channels",
		Aliases: []string{"ls"},
		Short:   "List channels with unread and inbox counters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg, cmd.ErrOrStderr(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			all, _ := cmd.Flags().GetBool("all")
			channels := visibleChannels(s.manager.Channels(), all)
			if opts.json {
				views := make([]channelView, 0, len(channels))
				for _, ch := range channels {
					views = append(views, newChannelView(ch))
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE", "UNREAD", "INBOX"}, channelRows(channels))
		},
	}
	cmd.Flags().Bool("all", false, "include hidden channels")
	return cmd
}

// visibleChannels drops hidden channels unless all is set.
func visibleChannels(channels []*models.Channel, all bool) []*models.Channel {
	if all {
		return channels
	}
	out := make([]*models.Channel, 0, len(channels))
	for _, ch := range channels {
		if !ch.Hidden {
			out = append(out, ch)
		}
	}
	return out
}
