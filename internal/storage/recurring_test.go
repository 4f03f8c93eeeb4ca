package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func TestSQLStoreRecurringCRUD(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	u, _, rent := seed(t, s)

	r, err := s.CreateRecurring(ctx, core.RecurringTransaction{
		UserID:     u.ID,
		Name:       "  Rent ",
		Type:       core.ObligationBill,
		Amount:     dec("1200"),
		CategoryID: rent.ID,
		StartDate:  core.NewDate(2025, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Rent", r.Name)
	assert.Equal(t, "Rent", r.CategoryName)
	assert.Equal(t, core.Monthly, r.Frequency)
	assert.Equal(t, core.Expense, r.Kind)
	assert.True(t, r.Active)
	assert.True(t, r.Amount.Equal(dec("1200")))

	_, err = s.CreateRecurring(ctx, core.RecurringTransaction{
		UserID: u.ID, Name: "Bad", Amount: dec("1"), CategoryID: "missing", StartDate: core.NewDate(2025, 1, 1),
	})
	assert.True(t, core.IsValidationError(err))

	sub, err := s.CreateRecurring(ctx, core.RecurringTransaction{
		UserID: u.ID, Name: "Music", Type: core.ObligationSubscription, Amount: dec("9.99"),
		Frequency: core.Monthly, StartDate: core.NewDate(2025, 2, 1),
	})
	require.NoError(t, err)

	updated, err := s.UpdateRecurring(ctx, u.ID, sub.ID, core.Patch{
		{Column: "is_active", Value: false},
		{Column: "end_date", Value: core.NewDate(2025, 12, 31)},
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, "2025-12-31", updated.EndDate.String())

	_, err = s.UpdateRecurring(ctx, u.ID, sub.ID, core.Patch{{Column: "end_date", Value: core.NewDate(2024, 1, 1)}})
	assert.True(t, core.IsValidationError(err), "end before start is rolled back")

	all, err := s.ListRecurring(ctx, u.ID, core.RecurringFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Rent", all[0].Name)
	assert.Equal(t, "2025-12-31", all[1].EndDate.String())

	active, err := s.ListRecurring(ctx, u.ID, core.RecurringFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r.ID, active[0].ID)

	subs, err := s.ListRecurring(ctx, u.ID, core.RecurringFilter{Type: core.ObligationSubscription})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	everyone, err := s.ListActiveRecurring(ctx)
	require.NoError(t, err)
	assert.Len(t, everyone, 1)

	require.NoError(t, s.DeleteRecurring(ctx, u.ID, sub.ID))
	assert.True(t, errors.Is(s.DeleteRecurring(ctx, u.ID, sub.ID), core.ErrNotFound))
	_, err = s.GetRecurring(ctx, "someone-else", r.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSQLStorePostRecurring(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	u, _, _ := seed(t, s)

	loan, err := s.CreateRecurring(ctx, core.RecurringTransaction{
		UserID: u.ID, Name: "Car loan", Type: core.ObligationDebt,
		Amount: dec("150"), Balance: dec("200"), StartDate: core.NewDate(2025, 1, 10),
	})
	require.NoError(t, err)

	_, err = s.PostRecurring(ctx, u.ID, loan.ID, core.NewDate(2025, 1, 9))
	assert.True(t, core.IsValidationError(err), "cannot post before the start date")

	tx, err := s.PostRecurring(ctx, u.ID, loan.ID, core.NewDate(2025, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, "Car loan", tx.Description)
	assert.True(t, tx.Amount.Equal(dec("150")))

	tx, err = s.PostRecurring(ctx, u.ID, loan.ID, core.NewDate(2025, 2, 10))
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(dec("50")), "last payment is capped by the balance")

	got, err := s.GetRecurring(ctx, u.ID, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.False(t, got.Active)
	assert.Equal(t, "2025-02-10", got.LastExecution.String())

	_, err = s.PostRecurring(ctx, u.ID, loan.ID, core.NewDate(2025, 3, 10))
	assert.True(t, core.IsValidationError(err), "paused template does not post")

	txs, err := s.ListTransactions(ctx, u.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}
