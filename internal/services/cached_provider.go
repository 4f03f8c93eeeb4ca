package services

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// CachingProvider memoizes snapshot reads per user for a short TTL.
// Writers call Invalidate after changing a user's data.
type CachingProvider struct {
	next         DataProvider
	budgets      *cache.LRUCache[[]core.BudgetSnapshot]
	goals        *cache.LRUCache[[]core.GoalSnapshot]
	monthly      *cache.LRUCache[[]core.MonthlyTotal]
	categories   *cache.LRUCache[[]core.CategoryTotal]
	transactions *cache.LRUCache[[]core.TransactionSample]
}

func NewCachingProvider(next DataProvider, size int, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		next:         next,
		budgets:      cache.NewLRUCache[[]core.BudgetSnapshot](size, ttl),
		goals:        cache.NewLRUCache[[]core.GoalSnapshot](size, ttl),
		monthly:      cache.NewLRUCache[[]core.MonthlyTotal](size, ttl),
		categories:   cache.NewLRUCache[[]core.CategoryTotal](size, ttl),
		transactions: cache.NewLRUCache[[]core.TransactionSample](size, ttl),
	}
}

// Register adds every underlying cache to m for periodic cleanup.
func (p *CachingProvider) Register(m *cache.Manager) {
	m.Register(p.budgets)
	m.Register(p.goals)
	m.Register(p.monthly)
	m.Register(p.categories)
	m.Register(p.transactions)
}

// Invalidate drops every cached snapshot of userID.
func (p *CachingProvider) Invalidate(userID string) {
	prefix := userID + "|"
	p.budgets.DeletePrefix(prefix)
	p.goals.DeletePrefix(prefix)
	p.monthly.DeletePrefix(prefix)
	p.categories.DeletePrefix(prefix)
	p.transactions.DeletePrefix(prefix)
}

func (p *CachingProvider) GetBudgets(ctx context.Context, userID string) ([]core.BudgetSnapshot, error) {
	return lookup(ctx, p.budgets, userID+"|", func(ctx context.Context) ([]core.BudgetSnapshot, error) {
		return p.next.GetBudgets(ctx, userID)
	})
}

func (p *CachingProvider) GetGoals(ctx context.Context, userID string) ([]core.GoalSnapshot, error) {
	return lookup(ctx, p.goals, userID+"|", func(ctx context.Context) ([]core.GoalSnapshot, error) {
		return p.next.GetGoals(ctx, userID)
	})
}

func (p *CachingProvider) GetMonthlyTotals(ctx context.Context, userID string, year, month int) ([]core.MonthlyTotal, error) {
	key := fmt.Sprintf("%s|%04d-%02d", userID, year, month)
	return lookup(ctx, p.monthly, key, func(ctx context.Context) ([]core.MonthlyTotal, error) {
		return p.next.GetMonthlyTotals(ctx, userID, year, month)
	})
}

func (p *CachingProvider) GetCategoryTotals(ctx context.Context, userID string, start, end core.Date) ([]core.CategoryTotal, error) {
	key := fmt.Sprintf("%s|%s|%s", userID, start, end)
	return lookup(ctx, p.categories, key, func(ctx context.Context) ([]core.CategoryTotal, error) {
		return p.next.GetCategoryTotals(ctx, userID, start, end)
	})
}

func (p *CachingProvider) GetRecentTransactions(ctx context.Context, userID string, w core.TransactionWindow) ([]core.TransactionSample, error) {
	key := fmt.Sprintf("%s|%d|%d", userID, w.Days, w.Limit)
	return lookup(ctx, p.transactions, key, func(ctx context.Context) ([]core.TransactionSample, error) {
		return p.next.GetRecentTransactions(ctx, userID, w)
	})
}

func lookup[T any](ctx context.Context, c *cache.LRUCache[T], key string, load func(context.Context) (T, error)) (T, error) {
	v, hit, err := c.GetOrLoad(ctx, key, load)
	if hit {
		snapshotCacheRequests.WithLabelValues("hit").Inc()
	} else {
		snapshotCacheRequests.WithLabelValues("miss").Inc()
	}
	return v, err
}
