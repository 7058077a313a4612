package cli

import (
	"github.com/spf13/cobra"

	"github.com/tOgg1/discuss/internal/models"
)

func newStarCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "star [message-id...]",
		Short: "Star or unstar messages",
		Long:  "Toggle the star of each message. With --clear, unstar every starred message.",
		RunE: func(cmd *cobra.Command, args []string) error {
			clearAll, _ := cmd.Flags().GetBool("clear")
			if clearAll == (len(args) > 0) {
				return Exitf(ExitCodeUsage, "give message ids or --clear")
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

			if clearAll {
				if err := s.manager.UnstarAll(ctx); err != nil {
					return Exitf(ExitCodeFailure, "%v", err)
				}
				printf(cmd, "unstarred all messages\n")
				return nil
			}
			for _, id := range ids {
				if err := s.manager.ToggleStarStatus(ctx, id); err != nil {
					return Exitf(ExitCodeFailure, "%v", err)
				}
				printf(cmd, "toggled star on %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().Bool("clear", false, "unstar all messages")
	return cmd
}

func parseMessageIDs(args []string) ([]models.MessageID, error) {
	ids := make([]models.MessageID, 0, len(args))
	for _, arg := range args {
		id, err := models.ParseMessageID(arg)
		if err != nil || id <= 0 || id.IsTransient() {
			return nil, Exitf(ExitCodeUsage, "invalid message id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
