package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	backend string
	output  string
	demo    bool
}

// app is the per-invocation wiring opened by commands that read data.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
	engine  *services.RecommendationEngine

	// demoUser is set when --demo seeded the store.
	demoUser string
}

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Personal finance recommendations and anomaly diagnostics",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.output != "text" && opts.output != "json" {
				return fmt.Errorf("invalid --output %q: must be text or json", opts.output)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "data backend override (memory, sqlite, postgres)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json)")
	root.PersistentFlags().BoolVar(&opts.demo, "demo", false, "seed demo data before running and default to the demo user")

	root.AddCommand(
		newRecommendCmd(opts),
		newFraudCmd(opts),
		newSpikesCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newRequestCmd(opts),
		newResultsCmd(opts),
		newRecurringCmd(opts),
	)
	return root
}

// loadConfig reads the environment and applies flag overrides before validating.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg := config.Load()
	if opts.backend != "" {
		cfg.DataBackend = opts.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires config, logger, backend and engine for one command. The
// caller must call close.
func openApp(cmd *cobra.Command, opts *rootOptions) (a *app, closeFn func(), err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, cmd.ErrOrStderr(), log.ComponentCLI)

	ctx := cmd.Context()
	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn = func() {
		if err := result.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}

	a = &app{
		cfg:     cfg,
		logger:  logger,
		backend: result,
		engine:  cli.NewEngine(cfg, result.Provider, logger),
	}

	if opts.demo {
		sum, err := cli.SeedDemo(ctx, result.Store, time.Now())
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("seed demo data: %w", err)
		}
		a.demoUser = sum.User.ID
		logger.Info("Demo data seeded",
			log.FieldUserID, sum.User.ID,
			"transactions", sum.Transactions)
	}
	return a, closeFn, nil
}

// userArg returns the explicit user argument or the demo user.
func (a *app) userArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.demoUser != "" {
		return a.demoUser, nil
	}
	return "", fmt.Errorf("a user ID is required (or pass --demo)")
}

// commandContext bounds a command by its own timeout when one is given.
func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
