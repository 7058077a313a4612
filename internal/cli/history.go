package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/discuss/internal/chat"
	"github.com/tOgg1/discuss/internal/models"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history [channel]",
		Aliases: []string{"log"},
		Short:   "Show the messages of a channel",
		Long: "Show the messages of a channel, oldest first. Without a channel, the one\n" +
			"selected with 'discuss use' is shown. Use inbox or starred for the mailboxes.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			more, _ := cmd.Flags().GetInt("more")
			rawDomain, _ := cmd.Flags().GetString("domain")
			if more < 0 {
				return Exitf(ExitCodeUsage, "--more must not be negative")
			}
			domain, err := models.ParseDomain(rawDomain)
			if err != nil {
				return Exitf(ExitCodeUsage, "%v", err)
			}

			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ref, err := channelRef(opts.contextStore(), cfg, arg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, cmd.ErrOrStderr(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			ch, err := resolveChannel(s.manager.Channels(), mailboxAlias(ref))
			if err != nil {
				return err
			}

			q := chat.Query{ChannelID: ch.ID, Domain: domain}
			msgs, err := s.manager.GetMessages(ctx, q)
			if err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			q.LoadMore = true
			for i := 0; i < more && !s.manager.AllHistoryLoaded(ch.ID, domain); i++ {
				if msgs, err = s.manager.GetMessages(ctx, q); err != nil {
					return Exitf(ExitCodeFailure, "%v", err)
				}
			}

			if opts.json {
				views := make([]messageView, 0, len(msgs))
				for _, msg := range msgs {
					views = append(views, newMessageView(msg))
				}
				return writeJSON(cmd.OutOrStdout(), views)
			}
			if len(msgs) == 0 {
				printf(cmd, "%s\n", mutedStyle.Render("(no messages)"))
				return nil
			}
			if !s.manager.AllHistoryLoaded(ch.ID, domain) {
				printf(cmd, "%s\n", mutedStyle.Render("(older messages available, use --more)"))
			}
			now := time.Now()
			for _, msg := range msgs {
				printf(cmd, "%s\n", formatMessage(msg, now))
			}
			return nil
		},
	}
	cmd.Flags().Int("more", 0, "load this many older pages")
	cmd.Flags().String("domain", "", `extra filter as a JSON domain, e.g. '[["author_id","=",7]]'`)
	return cmd
}

// mailboxAlias maps the mailbox shorthands to their channel ids.
func mailboxAlias(ref string) string {
	switch ref {
	case "inbox":
		return string(models.InboxChannelID)
	case "starred":
		return string(models.StarredChannelID)
	}
	return ref
}
