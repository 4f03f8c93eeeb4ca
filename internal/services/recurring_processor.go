package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// RecurringStore is the persistence the recurring processor needs.
type RecurringStore interface {
	ListActiveRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
	ListRecurring(ctx context.Context, userID string, filter core.RecurringFilter) ([]core.RecurringTransaction, error)
	UpdateRecurring(ctx context.Context, userID, id string, patch core.Patch) (core.RecurringTransaction, error)
	// PostRecurring records one posting of the template on day and advances it.
	PostRecurring(ctx context.Context, userID, id string, day core.Date) (core.Transaction, error)
}

// Invalidator drops cached snapshots for a user.
type Invalidator interface {
	Invalidate(userID string)
}

// RecurringProcessor turns due recurring templates into transactions.
type RecurringProcessor struct {
	store  RecurringStore
	cache  Invalidator
	logger *log.Logger
}

// NewRecurringProcessor creates a new recurring transaction processor. cache
// may be nil.
func NewRecurringProcessor(store RecurringStore, cache Invalidator, logger *log.Logger) *RecurringProcessor {
	if logger == nil {
		logger = log.Default(log.ComponentRecurring)
	}
	return &RecurringProcessor{store: store, cache: cache, logger: logger}
}

// ProcessDue posts every active template that is due on now's calendar day and
// returns how many were posted. A failure on one template is logged and does
// not stop the run; the returned error then reports how many failed.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	items, err := p.store.ListActiveRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active recurring transactions: %w", err)
	}

	today := core.DateOf(now.UTC())
	p.logger.InfoContext(ctx, "Processing recurring transactions",
		"total_active", len(items),
		"processing_date", today.String())

	touched := make(map[string]bool)
	processed, failed := 0, 0
	for _, r := range items {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if r.Ended(today) {
			p.pause(ctx, r)
			continue
		}

		checker, err := GetDuenessChecker(r.Frequency)
		if err != nil {
			failed++
			recurringPostings.WithLabelValues("failed").Inc()
			p.logger.ErrorContext(ctx, "Failed to check if recurring transaction is due",
				log.FieldEntityID, r.ID,
				log.FieldError, err)
			continue
		}
		if !checker.IsDue(r.LastExecution, today, r.StartDate) {
			continue
		}

		tx, err := p.store.PostRecurring(ctx, r.UserID, r.ID, today)
		if err != nil {
			failed++
			recurringPostings.WithLabelValues("failed").Inc()
			p.logger.ErrorContext(ctx, "Failed to post recurring transaction",
				log.FieldUserID, r.UserID,
				log.FieldEntityID, r.ID,
				log.FieldError, err)
			continue
		}

		processed++
		touched[r.UserID] = true
		recurringPostings.WithLabelValues("posted").Inc()
		p.logger.InfoContext(ctx, "Posted recurring transaction",
			log.FieldUserID, r.UserID,
			log.FieldEntityID, r.ID,
			"transaction_id", tx.ID,
			"amount", tx.Amount.StringFixed(2),
			"frequency", r.Frequency)
	}

	if p.cache != nil {
		for userID := range touched {
			p.cache.Invalidate(userID)
		}
	}

	p.logger.InfoContext(ctx, "Recurring transaction processing complete",
		log.FieldOperation, log.OpRecurring,
		"processed", processed,
		"failed", failed,
		"total_checked", len(items))

	if failed > 0 {
		return processed, fmt.Errorf("recurring: %d of %d postings failed", failed, processed+failed)
	}
	return processed, nil
}

func (p *RecurringProcessor) pause(ctx context.Context, r core.RecurringTransaction) {
	_, err := p.store.UpdateRecurring(ctx, r.UserID, r.ID, core.Patch{{Column: "is_active", Value: false}})
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to pause ended recurring transaction",
			log.FieldEntityID, r.ID,
			log.FieldError, err)
		return
	}
	recurringPostings.WithLabelValues("ended").Inc()
	p.logger.InfoContext(ctx, "Paused ended recurring transaction",
		log.FieldUserID, r.UserID,
		log.FieldEntityID, r.ID,
		"end_date", r.EndDate.String())
}

// Upcoming lists the user's active templates due within days of now, soonest
// first. Templates already overdue are included with a negative DaysUntil.
func (p *RecurringProcessor) Upcoming(ctx context.Context, userID string, days int, now time.Time) ([]core.UpcomingTransaction, error) {
	if days <= 0 {
		return nil, ErrInvalidWindow
	}
	items, err := p.store.ListRecurring(ctx, userID, core.RecurringFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}

	today := core.DateOf(now.UTC())
	horizon := core.DateOf(today.AddDate(0, 0, days))
	out := make([]core.UpcomingTransaction, 0, len(items))
	for _, r := range items {
		checker, err := GetDuenessChecker(r.Frequency)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping recurring transaction with unknown frequency",
				log.FieldEntityID, r.ID,
				log.FieldError, err)
			continue
		}
		due := checker.NextDue(r.LastExecution, r.StartDate)
		if due.After(horizon.Time) || r.Ended(due) {
			continue
		}
		out = append(out, core.UpcomingTransaction{
			Recurring: r,
			DueDate:   due,
			DaysUntil: today.DaysUntil(due),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].Recurring.Name < out[j].Recurring.Name
	})
	return out, nil
}
