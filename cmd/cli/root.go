// Package cli holds the rocketstart command tree.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/rocketstart-api/pkg/config"
	"github.com/FACorreiaa/rocketstart-api/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "rocketstart",
		Short:         "rocketstart API server and operator tooling",
		Long:          "rocketstart serves the billing webhook, user endpoints and guarded pages, runs database migrations, and explains navigation decisions.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a config file (env vars and .env are always read)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newResolveCmd(),
	)

	return rootCmd
}

func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Observability.LogLevel, cfg.Observability.LogFormat), nil
}
