package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/hostenroll/internal/config"
	"github.com/HerbHall/hostenroll/internal/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "hostenroll",
		Short: "Register this machine as a host in Foreman",
		Long: `hostenroll gathers facts about the local machine with facter, resolves
the configured hostgroup, operating system, domain and other attributes to
Foreman IDs, removes stale records for the same host and creates a new one.

Settings come from the "foreman" section of the config file and can be
overridden with HOSTENROLL_FOREMAN_<KEY> environment variables.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: ./hostenroll.yaml, then /etc/hostenroll/hostenroll.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console)")

	root.AddCommand(newRegisterCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// load reads the configuration, applies persistent flag overrides and builds
// the logger.
func (o *rootOptions) load(cmd *cobra.Command) (*viper.Viper, *zap.Logger, error) {
	v, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Root().PersistentFlags()
	// These cannot fail: the flags are defined on the root command.
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))   //nolint:errcheck
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format")) //nolint:errcheck

	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return v, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
