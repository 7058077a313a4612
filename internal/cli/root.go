// Package cli implements the discuss command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tOgg1/discuss/internal/config"
	"github.com/tOgg1/discuss/internal/logging"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	logLevel   string
	json       bool

	// logCloser is the log file opened by loadConfig, if any.
	logCloser io.Closer
}

func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "discuss",
		Short:         "Chat from the terminal",
		Long:          "discuss reads and posts messages in your discuss channels and follows them live.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logCloser != nil {
				_ = opts.logCloser.Close()
			}
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/discuss/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.BoolVar(&opts.json, "json", false, "output JSON")

	cmd.AddCommand(
		newChannelsCmd(opts),
		newHistoryCmd(opts),
		newPostCmd(opts),
		newStarCmd(opts),
		newReadCmd(opts),
		newWatchCmd(opts),
		newUseCmd(opts),
		newLoginCmd(opts),
	)

	return cmd
}

// loadConfig reads the configuration and initializes logging from it.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if o.configFile != "" {
		loader.SetConfigFile(o.configFile)
	}
	if o.logLevel != "" {
		loader.Set("logging.level", o.logLevel)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "load config: %v", err)
	}

	closer, err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		File:         cfg.Logging.File,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	if err != nil {
		return nil, Exitf(ExitCodeFailure, "open log file: %v", err)
	}
	o.logCloser = closer
	return cfg, nil
}

func (o *globalOptions) contextStore() *config.ContextStore {
	return config.NewContextStore("")
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
