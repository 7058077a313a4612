package cli

import (
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the configured credentials",
		Long: "Authenticate against the configured server and print the session user.\n" +
			"The password is read from DISCUSS_SERVER_PASSWORD, or prompted for.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			_, user, err := login(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), user)
			}
			printf(cmd, "logged in as %s (uid %d, partner %d) on %s\n", user.Name, user.UID, user.PartnerID, user.Database)
			return nil
		},
	}
}
