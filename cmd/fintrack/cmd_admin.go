package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the sqlite or postgres backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := cli.SetupLogger(cfg, cmd.ErrOrStderr(), log.ComponentCLI)

			var d storage.Dialect
			var dsn string
			switch cfg.DataBackend {
			case "sqlite":
				d, dsn = storage.SQLite, cfg.SQLiteDBPath
			case "postgres":
				d, dsn = storage.Postgres, cfg.DatabaseURL
			default:
				return fmt.Errorf("migrate needs a sqlite or postgres backend, got %s", cfg.DataBackend)
			}

			if err := storage.RunMigrations(d, dsn); err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(d, dsn)
			if err != nil {
				return err
			}
			logger.Info("Schema up to date",
				log.FieldOperation, log.OpMigrate,
				log.FieldBackend, string(d),
				"version", version,
				"dirty", dirty)
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", d, version)
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo user with three months of sample data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seedOpts := *opts
			seedOpts.demo = false
			a, closeFn, err := openApp(cmd, &seedOpts)
			if err != nil {
				return err
			}
			defer closeFn()

			sum, err := cli.SeedDemo(cmd.Context(), a.backend.Store, time.Now())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, sum, func(tw *tabwriter.Writer, s cli.SeedSummary) {
				fmt.Fprintf(tw, "user\t%s\t%s\n", s.User.ID, s.User.Email)
				fmt.Fprintf(tw, "transactions\t%d\n", s.Transactions)
				fmt.Fprintf(tw, "budgets\t%d\n", s.Budgets)
				fmt.Fprintf(tw, "goals\t%d\n", s.Goals)
				fmt.Fprintf(tw, "recurring\t%d\n", s.Recurring)
			})
		},
	}
}
