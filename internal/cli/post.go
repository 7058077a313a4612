package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/discuss/internal/chat"
	"github.com/tOgg1/discuss/internal/models"
)

func newPostCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "post [channel] <text>",
		Aliases: []string{"send"},
		Short:   "Post a message",
		Long: "Post a message to a channel, to a direct conversation (--partner) or to a\n" +
			"record thread (--model and --res-id). Use - as text to read it from stdin.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _ := cmd.Flags().GetString("model")
			resID, _ := cmd.Flags().GetInt64("res-id")
			partner, _ := cmd.Flags().GetInt64("partner")
			subject, _ := cmd.Flags().GetString("subject")

			text, channelArg := args[len(args)-1], ""
			if len(args) == 2 {
				channelArg = args[0]
			}
			body, err := resolveBody(cmd.InOrStdin(), text)
			if err != nil {
				return err
			}
			toRecord := model != "" || resID != 0
			if toRecord && (model == "" || resID == 0) {
				return Exitf(ExitCodeUsage, "--model and --res-id go together")
			}
			if toRecord && partner != 0 {
				return Exitf(ExitCodeUsage, "--partner cannot be combined with --model")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ref := ""
			if !toRecord && partner == 0 {
				if ref, err = channelRef(opts.contextStore(), cfg, channelArg); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, cfg, cmd.ErrOrStderr(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			target := chat.PostTarget{Model: model, ResID: resID}
			switch {
			case toRecord:
			case partner != 0:
				ch, err := s.manager.CreateDM(ctx, partner)
				if err != nil {
					return Exitf(ExitCodeFailure, "%v", err)
				}
				target.ChannelID = ch.ID
			default:
				ch, err := resolveChannel(s.manager.Channels(), ref)
				if err != nil {
					return err
				}
				if ch.Type == models.ChannelTypeStatic {
					return Exitf(ExitCodeUsage, "cannot post to %s", ch.Name)
				}
				target.ChannelID = ch.ID
			}

			id, err := s.manager.PostMessage(ctx, target, models.PostPayload{
				Body:        body,
				Subject:     subject,
				MessageType: "comment",
			})
			if errors.Is(err, chat.ErrEmptyMessage) {
				return Exitf(ExitCodeUsage, "message is empty")
			}
			if err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"id": id, "channel_id": target.ChannelID})
			}
			printf(cmd, "posted %s\n", id)
			return nil
		},
	}
	cmd.Flags().String("model", "", "post to the thread of a record of this model")
	cmd.Flags().Int64("res-id", 0, "record id, with --model")
	cmd.Flags().Int64("partner", 0, "post to the direct conversation with this partner")
	cmd.Flags().String("subject", "", "message subject")
	return cmd
}

func resolveBody(in io.Reader, text string) (string, error) {
	if text != "-" {
		return text, nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", Exitf(ExitCodeFailure, "read stdin: %v", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
