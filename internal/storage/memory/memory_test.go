package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

var _ storage.Store = (*memory.Store)(nil)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store *memory.Store
	user  core.User
	food  core.Category
	rent  core.Category
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New(memory.WithClock(func() time.Time { return fixedNow }))

	u, err := s.CreateUser(ctx, core.User{Email: "bo@example.com", Name: "Bo"})
	require.NoError(t, err)
	food, err := s.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Food", Kind: core.Expense})
	require.NoError(t, err)
	rent, err := s.CreateCategory(ctx, core.Category{UserID: u.ID, Name: "Rent", Kind: core.Expense})
	require.NoError(t, err)
	return fixture{store: s, user: u, food: food, rent: rent}
}

func (f fixture) add(t *testing.T, categoryID string, kind core.TransactionKind, amount string, date core.Date) core.Transaction {
	t.Helper()
	tx, err := f.store.CreateTransaction(context.Background(), core.Transaction{
		UserID: f.user.ID, Amount: dec(amount), Kind: kind, CategoryID: categoryID, Date: date,
	})
	require.NoError(t, err)
	return tx
}

func TestUsersAndCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.CreateUser(ctx, core.User{Email: "BO@example.com", Name: "Dup"})
	assert.Error(t, err)

	_, err = f.store.CreateCategory(ctx, core.Category{UserID: "ghost", Name: "X", Kind: core.Expense})
	assert.True(t, errors.Is(err, core.ErrNotFound))

	cats, err := f.store.ListCategories(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Food", cats[0].Name)

	ids, err := f.store.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{f.user.ID}, ids)
}

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.add(t, f.food.ID, core.Expense, "10", core.NewDate(2025, 3, 1))
	assert.Equal(t, storage.DefaultPaymentMethod, tx.PaymentMethod)

	_, err := f.store.GetTransaction(ctx, "other", tx.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	patch, err := core.ParsePatch(core.EntityTransaction, map[string]any{"amount": 12.5, "category_id": f.rent.ID})
	require.NoError(t, err)
	updated, err := f.store.UpdateTransaction(ctx, f.user.ID, tx.ID, patch)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(dec("12.5")))
	assert.Equal(t, f.rent.ID, updated.CategoryID)

	bad, err := core.ParsePatch(core.EntityTransaction, map[string]any{"category_id": "ghost"})
	require.NoError(t, err)
	_, err = f.store.UpdateTransaction(ctx, f.user.ID, tx.ID, bad)
	assert.True(t, core.IsValidationError(err))

	_, err = f.store.UpdateTransaction(ctx, f.user.ID, tx.ID, core.Patch{{Column: "user_id", Value: "x"}})
	assert.True(t, core.IsValidationError(err))

	require.NoError(t, f.store.DeleteTransaction(ctx, f.user.ID, tx.ID))
	assert.True(t, errors.Is(f.store.DeleteTransaction(ctx, f.user.ID, tx.ID), core.ErrNotFound))
}

func TestBudgetSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.store.CreateBudget(ctx, core.Budget{
		UserID: f.user.ID, CategoryID: f.food.ID, Amount: dec("1000"),
		Period: core.Monthly, PeriodStart: core.NewDate(2025, 3, 1), Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", b.PeriodEnd.String())

	f.add(t, f.food.ID, core.Expense, "950", core.NewDate(2025, 3, 5))
	f.add(t, f.rent.ID, core.Expense, "700", core.NewDate(2025, 3, 5))
	f.add(t, f.food.ID, core.Expense, "1", core.NewDate(2025, 4, 1))

	snaps, err := f.store.GetBudgets(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "Food", snaps[0].Category)
	assert.True(t, snaps[0].Spent.Equal(dec("950")))

	patch, err := core.ParsePatch(core.EntityBudget, map[string]any{"is_active": false})
	require.NoError(t, err)
	_, err = f.store.UpdateBudget(ctx, f.user.ID, b.ID, patch)
	require.NoError(t, err)

	snaps, err = f.store.GetBudgets(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, snaps)

	all, err := f.store.ListBudgets(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Spent.Equal(dec("950")))
}

func TestAddContribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.store.CreateGoal(ctx, core.Goal{
		UserID: f.user.ID, Name: "Laptop", Target: dec("1000"), TargetDate: core.NewDate(2025, 12, 1),
	})
	require.NoError(t, err)

	g, err = f.store.AddContribution(ctx, f.user.ID, g.ID, dec("1000"))
	require.NoError(t, err)
	assert.True(t, g.Completed)
	assert.Equal(t, "2025-03-15", g.CompletedDate.String())

	txs, err := f.store.ListTransactions(ctx, f.user.ID, core.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Contribution to goal: Laptop", txs[0].Description)

	_, err = f.store.AddContribution(ctx, f.user.ID, g.ID, dec("-5"))
	assert.True(t, errors.Is(err, core.ErrInvalidAmount))

	txs, err = f.store.ListTransactions(ctx, f.user.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestWithTxDiscardsOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.WithTx(ctx, func(tx storage.Store) error {
		_, err := tx.CreateTransaction(ctx, core.Transaction{
			UserID: f.user.ID, Amount: dec("1"), Kind: core.Expense, Date: core.NewDate(2025, 3, 1),
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	txs, err := f.store.ListTransactions(ctx, f.user.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.add(t, f.food.ID, core.Expense, "100", core.NewDate(2025, 3, 2))
	f.add(t, f.rent.ID, core.Expense, "800", core.NewDate(2025, 3, 1))
	f.add(t, "", core.Expense, "5", core.NewDate(2025, 3, 3))
	f.add(t, "", core.Income, "2000", core.NewDate(2025, 3, 1))
	f.add(t, f.food.ID, core.Expense, "40", core.NewDate(2024, 12, 1))

	totals, err := f.store.GetMonthlyTotals(ctx, f.user.ID, 2025, 3)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, core.Expense, totals[0].Kind)
	assert.True(t, totals[0].Total.Equal(dec("905")))
	assert.Equal(t, 3, totals[0].Count)

	cats, err := f.store.GetCategoryTotals(ctx, f.user.ID, core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31))
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, []string{"Rent", "Food", "Uncategorized"}, []string{cats[0].Category, cats[1].Category, cats[2].Category})

	recent, err := f.store.GetRecentTransactions(ctx, f.user.ID, core.TransactionWindow{Days: 30})
	require.NoError(t, err)
	assert.Len(t, recent, 4)
	assert.Equal(t, "2025-03-03", recent[0].Date.String())
	assert.Equal(t, "Uncategorized", recent[0].Category)

	limited, err := f.store.GetRecentTransactions(ctx, f.user.ID, core.TransactionWindow{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	goals, err := f.store.GetGoals(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, goals)
}
