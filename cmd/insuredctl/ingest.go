package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pramodsurya033/Insuredmine/customer"
	"github.com/pramodsurya033/Insuredmine/db"
	"github.com/pramodsurya033/Insuredmine/ingest"
	"github.com/pramodsurya033/Insuredmine/policy"
	"github.com/pramodsurya033/Insuredmine/reference"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a CSV or TSV policy file",
		Long:  `Parse the file and resolve agents, carriers, lines of business, users, accounts and policies directly against the database.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{
				MaxConns:       cfg.Database.MaxConns,
				ConnectTimeout: cfg.Database.ConnectTimeout,
			}, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			customers := customer.NewRepository(pool)
			policies := policy.NewRepository(pool)
			service := ingest.NewService(
				ingest.NewParser([]rune(cfg.Ingest.Delimiter)[0], cfg.Ingest.MaxParseWorkers, logger),
				ingest.NewResolver(reference.NewRepository(pool), customers, logger),
				ingest.NewLinker(customers, policies, logger),
				logger,
			)

			summary, err := service.IngestFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ingest %s: %w", args[0], err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
