// Package services holds the recommendation and anomaly detection engine.
//
// The engine reads point-in-time snapshots through a DataProvider, runs a fixed
// set of rule based analyzers plus a statistical anomaly stage, and returns a
// ranked list of advisory records. It never writes and keeps no state between
// calls.
//
// RecurringProcessor is the one writer here: it posts recurring transactions
// as they fall due.
package services

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrInvalidWindow is returned when a lookback window is not positive.
var ErrInvalidWindow = errors.New("lookback window must be positive")

//go:generate mockgen -destination=mocks/mock_provider.go -package=mock_services fintrack/internal/services DataProvider

// DataProvider supplies the read-only views the engine consumes, each scoped to one user.
type DataProvider interface {
	GetBudgets(ctx context.Context, userID string) ([]core.BudgetSnapshot, error)
	GetGoals(ctx context.Context, userID string) ([]core.GoalSnapshot, error)
	// GetMonthlyTotals returns one total per transaction kind for the calendar month.
	GetMonthlyTotals(ctx context.Context, userID string, year int, month int) ([]core.MonthlyTotal, error)
	// GetCategoryTotals sums expenses per category for dates in [start, end].
	GetCategoryTotals(ctx context.Context, userID string, start, end core.Date) ([]core.CategoryTotal, error)
	GetRecentTransactions(ctx context.Context, userID string, window core.TransactionWindow) ([]core.TransactionSample, error)
}
