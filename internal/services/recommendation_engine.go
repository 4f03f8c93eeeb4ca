package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

const anomalyStage = "anomalies"

// RecommendationEngine merges analyzer and anomaly output into one ranked list.
// It holds no per-call state and is safe for concurrent use.
type RecommendationEngine struct {
	analyzers []Analyzer
	detector  *AnomalyDetector
	cfg       settings
	logger    *log.Logger
}

func NewRecommendationEngine(provider DataProvider, opts ...Option) *RecommendationEngine {
	cfg := newSettings(opts)
	analyzers := cfg.analyzers
	if analyzers == nil {
		analyzers = DefaultAnalyzers(provider)
	}
	return &RecommendationEngine{
		analyzers: analyzers,
		detector:  NewAnomalyDetector(provider, opts...),
		cfg:       cfg,
		logger:    cfg.logger.WithComponent(log.ComponentEngine),
	}
}

// Detector exposes the anomaly detector for standalone diagnostics.
func (e *RecommendationEngine) Detector() *AnomalyDetector {
	return e.detector
}

// GenerateRecommendations returns between one and limit records ordered by
// priority, highest first. It never fails: when every stage fails the result
// is a single error record, and when nothing is found a single info record.
func (e *RecommendationEngine) GenerateRecommendations(ctx context.Context, userID string, limit int) (out []core.Recommendation) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Recommendation generation panicked",
				log.FieldUserID, userID, "panic", fmt.Sprint(r))
			out, outcome = []core.Recommendation{errorRecommendation()}, "error"
		}
		generationLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		for _, r := range out {
			recommendationsEmitted.WithLabelValues(string(r.Kind)).Inc()
		}
	}()

	if limit <= 0 {
		limit = e.cfg.defaultLimit
	}
	now := e.cfg.now()

	stages := len(e.analyzers) + 1
	results := make([][]core.Recommendation, stages)
	failed := make([]bool, stages)

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range e.analyzers {
		i, a := i, a
		g.Go(func() error {
			results[i], failed[i] = e.runStage(gctx, userID, a.Name(), func(ctx context.Context) ([]core.Recommendation, error) {
				return a.Analyze(ctx, userID, now)
			})
			return nil
		})
	}
	g.Go(func() error {
		results[stages-1], failed[stages-1] = e.runStage(gctx, userID, anomalyStage, func(ctx context.Context) ([]core.Recommendation, error) {
			return e.detector.flagAnomalies(ctx, userID)
		})
		return nil
	})
	_ = g.Wait()

	failures := 0
	var merged []core.Recommendation
	for i := range results {
		if failed[i] {
			failures++
		}
		merged = append(merged, results[i]...)
	}

	if failures == stages {
		e.logger.ErrorContext(ctx, "Every analysis stage failed", log.FieldUserID, userID)
		outcome = "error"
		return []core.Recommendation{errorRecommendation()}
	}
	if len(merged) == 0 {
		outcome = "empty"
		return []core.Recommendation{insufficientDataRecommendation()}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	e.logger.DebugContext(ctx, "Recommendations generated",
		log.NewFields().WithUser(userID).WithDuration(time.Since(start)).ToSlice()...)
	return merged
}

// runStage isolates one stage: errors and panics degrade it to empty output.
func (e *RecommendationEngine) runStage(ctx context.Context, userID, name string, fn func(context.Context) ([]core.Recommendation, error)) (recs []core.Recommendation, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Analysis stage panicked",
				log.FieldUserID, userID, log.FieldAnalyzer, name, "panic", fmt.Sprint(r))
			stageFailures.WithLabelValues(name).Inc()
			recs, failed = nil, true
		}
	}()

	recs, err := fn(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "Analysis stage degraded",
			log.NewFields().WithUser(userID).WithAnalyzer(name).WithError(err).ToSlice()...)
		stageFailures.WithLabelValues(name).Inc()
		return nil, true
	}
	return recs, false
}

func insufficientDataRecommendation() core.Recommendation {
	return core.Recommendation{
		Kind:             core.KindInfo,
		Code:             "insufficient_data",
		Title:            "Not enough data yet",
		Message:          "Record more transactions and set up budgets or goals to get personalised advice.",
		Priority:         1,
		PotentialSavings: decimal.Zero,
	}
}

func errorRecommendation() core.Recommendation {
	return core.Recommendation{
		Kind:             core.KindError,
		Code:             "analysis_failed",
		Title:            "Recommendations unavailable",
		Message:          "Your data could not be analysed right now. Please try again later.",
		Priority:         1,
		PotentialSavings: decimal.Zero,
	}
}
