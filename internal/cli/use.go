package cli

import (
	"github.com/spf13/cobra"
)

func newUseCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use [channel]",
		Short: "Select the default channel",
		Long: "Select the channel that history and post use when none is given.\n" +
			"Without arguments, print the current selection.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := opts.contextStore()
			clearAll, _ := cmd.Flags().GetBool("clear")

			current, err := store.Load()
			if err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			if clearAll {
				if err := store.Clear(); err != nil {
					return Exitf(ExitCodeFailure, "%v", err)
				}
				printf(cmd, "channel selection cleared\n")
				return nil
			}
			if len(args) == 0 {
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), current)
				}
				printf(cmd, "%s\n", current.String())
				return nil
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), cfg, cmd.ErrOrStderr(), sessionOptions{})
			if err != nil {
				return err
			}
			defer s.Close()

			ch, err := resolveChannel(s.manager.Channels(), mailboxAlias(args[0]))
			if err != nil {
				return err
			}
			current.SetChannel(cfg, string(ch.ID), ch.Name)
			if err := store.Save(current); err != nil {
				return Exitf(ExitCodeFailure, "%v", err)
			}
			printf(cmd, "using %s\n", current.String())
			return nil
		},
	}
	cmd.Flags().Bool("clear", false, "clear the selection")
	return cmd
}
