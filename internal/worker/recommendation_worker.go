// Package worker computes recommendations off the request path: on demand for
// AMQP requests and on a cron schedule for every known user. The same cron
// posts recurring transactions as they fall due.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Generator produces ranked recommendations for one user.
type Generator interface {
	GenerateRecommendations(ctx context.Context, userID string, limit int) []core.Recommendation
}

// UserLister enumerates the users a digest covers.
type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Publisher delivers computed results.
type Publisher interface {
	PublishRecommendationResult(ctx context.Context, res *amqp.RecommendationResult) error
}

// Invalidator drops cached snapshots for a user.
type Invalidator interface {
	Invalidate(userID string)
}

// RecurringRunner posts the recurring transactions due at now.
type RecurringRunner interface {
	ProcessDue(ctx context.Context, now time.Time) (int, error)
}

// Schedule holds the cron expressions of the scheduled jobs. An empty
// expression leaves that job unscheduled.
type Schedule struct {
	Digest    string
	Recurring string
}

// Config holds worker tuning. Zero values fall back to defaults.
type Config struct {
	Concurrency  int
	DefaultLimit int
	Logger       *log.Logger
	Clock        func() time.Time
	// Cache, when set, is invalidated before on-demand requests so callers
	// see their latest writes.
	Cache Invalidator
	// Recurring, when set, can be scheduled with Schedule.Recurring.
	Recurring RecurringRunner
}

// RecommendationWorker answers recommendation requests and runs digests.
type RecommendationWorker struct {
	engine    Generator
	users     UserLister
	publisher Publisher
	cache     Invalidator
	recurring RecurringRunner

	concurrency int
	limit       int
	logger      *log.Logger
	now         func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cron    *cron.Cron
}

func NewRecommendationWorker(engine Generator, users UserLister, publisher Publisher, cfg Config) *RecommendationWorker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default(log.ComponentWorker)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &RecommendationWorker{
		engine:      engine,
		users:       users,
		publisher:   publisher,
		cache:       cfg.Cache,
		recurring:   cfg.Recurring,
		concurrency: cfg.Concurrency,
		limit:       cfg.DefaultLimit,
		logger:      cfg.Logger,
		now:         cfg.Clock,
	}
}

// HandleRequest runs the engine for one request and publishes the result. A
// returned error means the result was not delivered and the request should be
// retried.
func (w *RecommendationWorker) HandleRequest(ctx context.Context, req *amqp.RecommendationRequest) error {
	reason := req.Reason
	if reason == "" {
		reason = amqp.ReasonOnDemand
	}
	limit := req.Limit
	if limit <= 0 {
		limit = w.limit
	}

	if w.cache != nil && reason == amqp.ReasonOnDemand {
		w.cache.Invalidate(req.UserID)
	}

	start := w.now()
	recs := w.engine.GenerateRecommendations(ctx, req.UserID, limit)
	res := amqp.NewRecommendationResult(req, recs, w.now())

	if err := w.publisher.PublishRecommendationResult(ctx, res); err != nil {
		messagesHandled.WithLabelValues(reason, "error").Inc()
		return fmt.Errorf("publish result for %s: %w", req.UserID, err)
	}
	messagesHandled.WithLabelValues(reason, "ok").Inc()

	w.logger.InfoContext(ctx, "Recommendations published",
		log.FieldUserID, req.UserID,
		"request_id", req.RequestID,
		"reason", reason,
		log.FieldCount, len(recs),
		log.FieldDuration, w.now().Sub(start).Milliseconds())
	return nil
}

// RunDigest publishes fresh recommendations for every user, at most
// Concurrency at a time. Failures for one user do not stop the sweep; the
// returned error reports how many users were missed.
func (w *RecommendationWorker) RunDigest(ctx context.Context) error {
	start := time.Now()
	defer func() { digestDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := w.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(ids) == 0 {
		w.logger.InfoContext(ctx, "Digest skipped, no users")
		return nil
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			req := &amqp.RecommendationRequest{
				RequestID:   fmt.Sprintf("digest-%s-%d", id, start.Unix()),
				UserID:      id,
				Limit:       w.limit,
				Reason:      amqp.ReasonDigest,
				RequestedAt: start.UTC(),
			}
			if err := w.HandleRequest(gctx, req); err != nil {
				failed.Add(1)
				w.logger.ErrorContext(gctx, "Digest failed for user",
					log.FieldUserID, id,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("digest interrupted: %w", err)
	}

	n := failed.Load()
	w.logger.InfoContext(ctx, "Digest completed",
		log.FieldOperation, log.OpDigest,
		"users", len(ids),
		"failed", n,
		log.FieldDuration, time.Since(start).Milliseconds())

	if n > 0 {
		return fmt.Errorf("digest: %d of %d users failed", n, len(ids))
	}
	return nil
}

// RunRecurring posts every recurring transaction due now.
func (w *RecommendationWorker) RunRecurring(ctx context.Context) error {
	if w.recurring == nil {
		return fmt.Errorf("no recurring processor configured")
	}
	start := time.Now()
	n, err := w.recurring.ProcessDue(ctx, w.now())
	w.logger.InfoContext(ctx, "Recurring run finished",
		log.FieldOperation, log.OpRecurring,
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds())
	return err
}

// Start schedules RunDigest and RunRecurring with standard five-field cron
// expressions or descriptors such as "@daily". Overlapping runs of the same
// job are skipped. Returns an error if already running or if nothing would
// be scheduled.
func (w *RecommendationWorker) Start(ctx context.Context, s Schedule) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("recommendation worker is already running")
	}
	if s.Digest == "" && s.Recurring == "" {
		return fmt.Errorf("no jobs to schedule")
	}
	if s.Recurring != "" && w.recurring == nil {
		return fmt.Errorf("recurring schedule set without a recurring processor")
	}

	logger := cronLogger{w.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if s.Digest != "" {
		if _, err := c.AddFunc(s.Digest, func() {
			if err := w.RunDigest(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Scheduled digest failed", log.FieldError, err)
			}
		}); err != nil {
			return fmt.Errorf("parse digest schedule %q: %w", s.Digest, err)
		}
	}
	if s.Recurring != "" {
		if _, err := c.AddFunc(s.Recurring, func() {
			if err := w.RunRecurring(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Scheduled recurring run failed", log.FieldError, err)
			}
		}); err != nil {
			return fmt.Errorf("parse recurring schedule %q: %w", s.Recurring, err)
		}
	}

	c.Start()
	w.cron = c
	w.running = true
	w.logger.InfoContext(ctx, "Jobs scheduled", "digest", s.Digest, "recurring", s.Recurring)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish or ctx to
// expire.
func (w *RecommendationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	c := w.cron
	w.running = false
	w.cron = nil
	w.mu.Unlock()

	select {
	case <-c.Stop().Done():
		w.logger.InfoContext(ctx, "Scheduler stopped")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is active.
func (w *RecommendationWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// cronLogger adapts log.Logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, log.FieldError, err)...)
}
