// Command insuredctl runs administrative tasks against an insuredmine
// deployment: schema migrations, offline ingestion and API token issuance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pramodsurya033/Insuredmine/config"
	"github.com/pramodsurya033/Insuredmine/logging"
)

type rootOptions struct {
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "insuredctl",
		Short:         "Insuredmine administrative tools",
		Long:          `insuredctl applies migrations, ingests policy files without the HTTP API and issues API tokens.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config file (environment only when empty)")

	cmd.AddCommand(
		newMigrateCommand(opts),
		newIngestCommand(opts),
		newTokenCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.Named("insuredctl"), nil
}
