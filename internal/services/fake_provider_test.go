package services_test

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeProvider serves canned snapshots. It is read-only once built, so the
// engine may call it from several goroutines.
type fakeProvider struct {
	budgets    []core.BudgetSnapshot
	goals      []core.GoalSnapshot
	monthly    map[string][]core.MonthlyTotal
	categories []core.CategoryTotal
	txs        []core.TransactionSample
	err        error
}

func (f *fakeProvider) GetBudgets(context.Context, string) ([]core.BudgetSnapshot, error) {
	return f.budgets, f.err
}

func (f *fakeProvider) GetGoals(context.Context, string) ([]core.GoalSnapshot, error) {
	return f.goals, f.err
}

func (f *fakeProvider) GetMonthlyTotals(_ context.Context, _ string, year, month int) ([]core.MonthlyTotal, error) {
	return f.monthly[fmt.Sprintf("%04d-%02d", year, month)], f.err
}

func (f *fakeProvider) GetCategoryTotals(context.Context, string, core.Date, core.Date) ([]core.CategoryTotal, error) {
	return f.categories, f.err
}

func (f *fakeProvider) GetRecentTransactions(context.Context, string, core.TransactionWindow) ([]core.TransactionSample, error) {
	return f.txs, f.err
}

func expenses(amounts ...string) []core.TransactionSample {
	out := make([]core.TransactionSample, len(amounts))
	for i, a := range amounts {
		out[i] = core.TransactionSample{
			ID:     fmt.Sprintf("tx-%d", i+1),
			Amount: dec(a),
			Kind:   core.Expense,
			Date:   core.NewDate(2025, 3, 1+i%14),
		}
	}
	return out
}

func repeat(amount string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = amount
	}
	return out
}

func expenseTotal(amount string) []core.MonthlyTotal {
	return []core.MonthlyTotal{{Kind: core.Expense, Total: dec(amount), Count: 1}}
}
