package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/services"
	mock_services "fintrack/internal/services/mocks"
)

func TestCachingProvider_ServesRepeatReadsFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	next := mock_services.NewMockDataProvider(ctrl)
	budgets := []core.BudgetSnapshot{{Category: "Food", Limit: dec("100"), Spent: dec("10"), Active: true}}
	next.EXPECT().GetBudgets(gomock.Any(), "u1").Return(budgets, nil).Times(1)
	next.EXPECT().GetMonthlyTotals(gomock.Any(), "u1", 2025, 3).Return(expenseTotal("10"), nil).Times(1)
	next.EXPECT().GetMonthlyTotals(gomock.Any(), "u1", 2025, 2).Return(expenseTotal("20"), nil).Times(1)

	p := services.NewCachingProvider(next, 16, time.Minute)
	for i := 0; i < 3; i++ {
		got, err := p.GetBudgets(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, budgets, got)

		_, err = p.GetMonthlyTotals(context.Background(), "u1", 2025, 3)
		require.NoError(t, err)
		_, err = p.GetMonthlyTotals(context.Background(), "u1", 2025, 2)
		require.NoError(t, err)
	}
}

func TestCachingProvider_InvalidateAndErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	next := mock_services.NewMockDataProvider(ctrl)
	window := core.TransactionWindow{Days: 30}
	gomock.InOrder(
		next.EXPECT().GetRecentTransactions(gomock.Any(), "u1", window).Return(nil, errors.New("timeout")),
		next.EXPECT().GetRecentTransactions(gomock.Any(), "u1", window).Return(expenses("5"), nil),
		next.EXPECT().GetRecentTransactions(gomock.Any(), "u1", window).Return(expenses("5", "6"), nil),
	)

	p := services.NewCachingProvider(next, 16, time.Minute)
	_, err := p.GetRecentTransactions(context.Background(), "u1", window)
	require.Error(t, err, "errors are not cached")

	got, err := p.GetRecentTransactions(context.Background(), "u1", window)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	p.Invalidate("u1")
	got, err = p.GetRecentTransactions(context.Background(), "u1", window)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCachingProvider_RegistersWithManager(t *testing.T) {
	p := services.NewCachingProvider(&fakeProvider{goals: []core.GoalSnapshot{{Name: "Car"}}}, 4, time.Nanosecond)
	_, err := p.GetGoals(context.Background(), "u1")
	require.NoError(t, err)

	m := cache.NewManager(nil)
	p.Register(m)
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, m.Sweep())
}

func TestCachingProvider_BacksTheEngine(t *testing.T) {
	p := services.NewCachingProvider(richProvider(), 32, time.Minute)
	recs := newEngine(p).GenerateRecommendations(context.Background(), "u1", 3)
	assertRanked(t, recs, 3)
}

// blockingBudgets holds its first GetBudgets call until release is closed and
// answers later calls straight away with fresh data.
type blockingBudgets struct {
	fakeProvider
	calls   int32
	started chan struct{}
	release chan struct{}
	stale   []core.BudgetSnapshot
	fresh   []core.BudgetSnapshot
}

func (b *blockingBudgets) GetBudgets(context.Context, string) ([]core.BudgetSnapshot, error) {
	if atomic.AddInt32(&b.calls, 1) == 1 {
		close(b.started)
		<-b.release
		return b.stale, nil
	}
	return b.fresh, nil
}

func TestCachingProvider_InvalidateDuringLoad(t *testing.T) {
	next := &blockingBudgets{
		started: make(chan struct{}),
		release: make(chan struct{}),
		stale:   []core.BudgetSnapshot{{Category: "Food", Limit: dec("100"), Spent: dec("10"), Active: true}},
		fresh:   []core.BudgetSnapshot{{Category: "Food", Limit: dec("100"), Spent: dec("90"), Active: true}},
	}
	p := services.NewCachingProvider(next, 16, time.Minute)
	ctx := context.Background()

	first := make(chan []core.BudgetSnapshot)
	go func() {
		got, err := p.GetBudgets(ctx, "u1")
		assert.NoError(t, err)
		first <- got
	}()
	<-next.started

	// A write lands while the first read is still loading.
	p.Invalidate("u1")

	second, err := p.GetBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, next.fresh, second)

	close(next.release)
	assert.Equal(t, next.stale, <-first)

	third, err := p.GetBudgets(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, next.fresh, third, "the stale load must not be cached")
	assert.Equal(t, int32(2), atomic.LoadInt32(&next.calls))
}
