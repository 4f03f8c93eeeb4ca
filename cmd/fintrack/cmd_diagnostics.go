package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recommend [user-id]",
		Short: "Generate ranked recommendations for a user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, err := a.userArg(args)
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.cfg.RecommendationLimit
			}
			recs := a.engine.GenerateRecommendations(cmd.Context(), userID, limit)
			return render(cmd.OutOrStdout(), opts.output, recs, recommendationTable)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of recommendations (default RECOMMENDATION_LIMIT)")
	return cmd
}

func newFraudCmd(opts *rootOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "fraud [user-id]",
		Short: "List transactions whose amount is a statistical outlier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, err := a.userArg(args)
			if err != nil {
				return err
			}
			found, err := a.engine.Detector().DetectFraud(cmd.Context(), userID, nil, threshold)
			if err != nil {
				return fmt.Errorf("detect fraud: %w", err)
			}
			return render(cmd.OutOrStdout(), opts.output, found, fraudTable)
		},
	}
	cmd.Flags().Float64VarP(&threshold, "threshold", "z", 0, "z-score threshold (default ZSCORE_THRESHOLD)")
	return cmd
}

func newSpikesCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "spikes [user-id]",
		Short: "List categories with unusually high recent spending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeFn, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			userID, err := a.userArg(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = a.cfg.SpikeWindowDays
			}
			spikes, err := a.engine.Detector().DetectSpendingSpikes(cmd.Context(), userID, days)
			if err != nil {
				return fmt.Errorf("detect spending spikes: %w", err)
			}
			return render(cmd.OutOrStdout(), opts.output, spikes, spikeTable)
		},
	}
	cmd.Flags().IntVarP(&days, "days", "d", 0, "look-back window in days (default SPIKE_WINDOW_DAYS)")
	return cmd
}
