package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
)

func dialBroker(cmd *cobra.Command, opts *rootOptions) (*amqp.Client, *log.Logger, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger(cfg, cmd.ErrOrStderr(), log.ComponentCLI)
	if cfg.AMQPURL == "" {
		return nil, nil, errors.New("AMQP_URL is not set")
	}
	client, err := newBrokerClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, logger, nil
}

func newBrokerClient(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRequestQueue, cfg.AMQPResultQueue,
		logger.WithComponent(log.ComponentAMQP))
}

func newRequestCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "request <user-id>",
		Short: "Queue a recommendation request for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := dialBroker(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			req := amqp.NewRecommendationRequest(args[0], limit)
			if err := req.Validate(); err != nil {
				return err
			}
			if err := client.PublishRecommendationRequest(cmd.Context(), req); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, req, func(tw *tabwriter.Writer, r *amqp.RecommendationRequest) {
				fmt.Fprintf(tw, "queued\t%s\n", r.RequestID)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of recommendations (worker default when 0)")
	return cmd
}

func newResultsCmd(opts *rootOptions) *cobra.Command {
	var (
		count   int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Consume and print recommendation results from the result queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := dialBroker(cmd, opts)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext(cmd, timeout)
			defer cancel()

			seen := 0
			err = client.ConsumeRecommendationResults(ctx, func(_ context.Context, res *amqp.RecommendationResult) error {
				if err := printResult(cmd, opts, res); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					cancel()
				}
				return nil
			})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 1, "stop after this many results (0 waits until timeout)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "give up after this long (0 waits forever)")
	return cmd
}

func printResult(cmd *cobra.Command, opts *rootOptions, res *amqp.RecommendationResult) error {
	if opts.output == "json" {
		return render(cmd.OutOrStdout(), opts.output, res, nil)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s user=%s reason=%s at=%s\n",
		res.RequestID, res.UserID, res.Reason, res.GeneratedAt.Format(time.RFC3339))
	return render(cmd.OutOrStdout(), opts.output, res.Recommendations, recommendationTable)
}
