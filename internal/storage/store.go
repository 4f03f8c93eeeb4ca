// Package storage persists users, categories, transactions, budgets, goals and
// recurring transactions, and serves the read-only snapshots consumed by the
// recommendation engine.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const DefaultPaymentMethod = "cash"

// Store is the persistence contract shared by every backend. The snapshot
// methods at the bottom satisfy services.DataProvider.
type Store interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)

	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)

	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, patch core.Patch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	ListTransactions(ctx context.Context, userID string, filter core.TransactionFilter) ([]core.Transaction, error)

	// CreateBudget derives PeriodEnd from Period when it is zero.
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
	UpdateBudget(ctx context.Context, userID, id string, patch core.Patch) (core.Budget, error)
	DeleteBudget(ctx context.Context, userID, id string) error
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)

	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	GetGoal(ctx context.Context, userID, id string) (core.Goal, error)
	UpdateGoal(ctx context.Context, userID, id string, patch core.Patch) (core.Goal, error)
	DeleteGoal(ctx context.Context, userID, id string) error
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	// AddContribution raises the goal's current amount, completes it once the
	// target is reached and records a matching expense, all in one transaction.
	AddContribution(ctx context.Context, userID, goalID string, amount decimal.Decimal) (core.Goal, error)

	// CreateRecurring stores a new, active recurring template.
	CreateRecurring(ctx context.Context, r core.RecurringTransaction) (core.RecurringTransaction, error)
	GetRecurring(ctx context.Context, userID, id string) (core.RecurringTransaction, error)
	ListRecurring(ctx context.Context, userID string, filter core.RecurringFilter) ([]core.RecurringTransaction, error)
	// ListActiveRecurring returns the active templates of every user.
	ListActiveRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
	UpdateRecurring(ctx context.Context, userID, id string, patch core.Patch) (core.RecurringTransaction, error)
	DeleteRecurring(ctx context.Context, userID, id string) error
	// PostRecurring records the template's transaction dated day and advances
	// the template, all in one transaction.
	PostRecurring(ctx context.Context, userID, id string, day core.Date) (core.Transaction, error)

	// WithTx runs fn against a store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
	Close() error

	GetBudgets(ctx context.Context, userID string) ([]core.BudgetSnapshot, error)
	GetGoals(ctx context.Context, userID string) ([]core.GoalSnapshot, error)
	GetMonthlyTotals(ctx context.Context, userID string, year, month int) ([]core.MonthlyTotal, error)
	GetCategoryTotals(ctx context.Context, userID string, start, end core.Date) ([]core.CategoryTotal, error)
	GetRecentTransactions(ctx context.Context, userID string, window core.TransactionWindow) ([]core.TransactionSample, error)
}

// BudgetSnapshot projects a budget with its derived spend for analysis.
func BudgetSnapshot(b core.Budget) core.BudgetSnapshot {
	name := b.CategoryName
	if name == "" {
		name = "All spending"
	}
	return core.BudgetSnapshot{
		Category: name,
		Limit:    b.Amount,
		Spent:    b.Spent,
		Active:   b.Active,
	}
}

// GoalSnapshot projects a goal for analysis.
func GoalSnapshot(g core.Goal) core.GoalSnapshot {
	s := core.GoalSnapshot{
		Name:      g.Name,
		Target:    g.Target,
		Current:   g.Current,
		Completed: g.Completed,
	}
	if !g.TargetDate.IsZero() {
		d := g.TargetDate
		s.TargetDate = &d
	}
	return s
}

// PrepareBudget fills defaults and validates a budget before insertion.
func PrepareBudget(b core.Budget) (core.Budget, error) {
	if b.Period == "" {
		b.Period = core.Monthly
	}
	if b.PeriodEnd.IsZero() && !b.PeriodStart.IsZero() {
		b.PeriodEnd = b.Period.End(b.PeriodStart)
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// PrepareGoal fills defaults and validates a goal before insertion.
func PrepareGoal(g core.Goal, today core.Date) (core.Goal, error) {
	if g.Priority == 0 {
		g.Priority = 3
	}
	if g.StartDate.IsZero() {
		g.StartDate = today
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

// PrepareTransaction fills defaults and validates a transaction before insertion.
func PrepareTransaction(t core.Transaction) (core.Transaction, error) {
	if t.PaymentMethod == "" {
		t.PaymentMethod = DefaultPaymentMethod
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// ContributionDescription is the description of the expense recorded by AddContribution.
func ContributionDescription(goalName string) string {
	return "Contribution to goal: " + goalName
}

// ApplyContribution adds amount to g and completes it on reaching the target.
func ApplyContribution(g core.Goal, amount decimal.Decimal, today core.Date) (core.Goal, error) {
	if !amount.IsPositive() {
		return core.Goal{}, core.ErrInvalidAmount
	}
	g.Current = g.Current.Add(amount)
	if !g.Completed && g.Current.GreaterThanOrEqual(g.Target) {
		g.Completed = true
		g.CompletedDate = today
	}
	return g, nil
}

// PrepareRecurring fills defaults and validates a recurring template before
// insertion. New templates are always active.
func PrepareRecurring(r core.RecurringTransaction) (core.RecurringTransaction, error) {
	if r.Type == "" {
		r.Type = core.ObligationOther
	}
	if r.Kind == "" {
		r.Kind = core.Expense
	}
	if r.Frequency == "" {
		r.Frequency = core.Monthly
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = DefaultPaymentMethod
	}
	r.Active = true
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	return r, nil
}

// RecurringPosting builds the transaction one posting of r on day records and
// the template as it stands afterwards.
func RecurringPosting(r core.RecurringTransaction, day core.Date) (core.Transaction, core.RecurringTransaction, error) {
	if !r.Active {
		return core.Transaction{}, core.RecurringTransaction{}, core.NewValidationError("is_active", "recurring transaction is paused")
	}
	if day.Before(r.StartDate.Time) {
		return core.Transaction{}, core.RecurringTransaction{}, core.NewValidationError("date", "before the recurring start date")
	}
	amount := r.PaymentAmount()
	t := core.Transaction{
		UserID:        r.UserID,
		Amount:        amount,
		Kind:          r.Kind,
		CategoryID:    r.CategoryID,
		Description:   r.Name,
		PaymentMethod: r.PaymentMethod,
		Date:          day,
	}
	return t, r.Posted(amount, day), nil
}
