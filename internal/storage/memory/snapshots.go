package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const uncategorized = "Uncategorized"

func (s *Store) GetBudgets(_ context.Context, userID string) ([]core.BudgetSnapshot, error) {
	defer s.read()()
	budgets := s.listBudgets(userID, true)
	out := make([]core.BudgetSnapshot, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, storage.BudgetSnapshot(b))
	}
	return out, nil
}

func (s *Store) GetGoals(ctx context.Context, userID string) ([]core.GoalSnapshot, error) {
	goals, err := s.ListGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]core.GoalSnapshot, 0, len(goals))
	for _, g := range goals {
		out = append(out, storage.GoalSnapshot(g))
	}
	return out, nil
}

func (s *Store) GetMonthlyTotals(_ context.Context, userID string, year, month int) ([]core.MonthlyTotal, error) {
	start := core.NewDate(year, month, 1)
	end := core.Monthly.End(start)

	defer s.read()()
	byKind := make(map[core.TransactionKind]*core.MonthlyTotal)
	for _, t := range s.data.transactions {
		if t.UserID != userID || t.Date.Before(start.Time) || t.Date.After(end.Time) {
			continue
		}
		m, ok := byKind[t.Kind]
		if !ok {
			m = &core.MonthlyTotal{Kind: t.Kind, Total: decimal.Zero}
			byKind[t.Kind] = m
		}
		m.Total = m.Total.Add(t.Amount)
		m.Count++
	}

	out := make([]core.MonthlyTotal, 0, len(byKind))
	for _, m := range byKind {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (s *Store) GetCategoryTotals(_ context.Context, userID string, start, end core.Date) ([]core.CategoryTotal, error) {
	defer s.read()()
	byName := make(map[string]*core.CategoryTotal)
	for _, t := range s.data.transactions {
		if t.UserID != userID || t.Kind != core.Expense {
			continue
		}
		if t.Date.Before(start.Time) || t.Date.After(end.Time) {
			continue
		}
		name := s.categoryName(t.CategoryID)
		if name == "" {
			name = uncategorized
		}
		ct, ok := byName[name]
		if !ok {
			ct = &core.CategoryTotal{Category: name, Total: decimal.Zero}
			byName[name] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}

	out := make([]core.CategoryTotal, 0, len(byName))
	for _, ct := range byName {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) GetRecentTransactions(_ context.Context, userID string, window core.TransactionWindow) ([]core.TransactionSample, error) {
	var from core.Date
	if window.Days > 0 {
		from = storage.WindowStart(s.now(), window.Days)
	}

	defer s.read()()
	var txs []core.Transaction
	for _, t := range s.data.transactions {
		if t.UserID != userID || (!from.IsZero() && t.Date.Before(from.Time)) {
			continue
		}
		txs = append(txs, t)
	}
	sortNewestFirst(txs, func(t core.Transaction) (core.Date, string) { return t.Date, t.ID })
	if window.Limit > 0 && len(txs) > window.Limit {
		txs = txs[:window.Limit]
	}

	out := make([]core.TransactionSample, 0, len(txs))
	for _, t := range txs {
		name := s.categoryName(t.CategoryID)
		if name == "" {
			name = uncategorized
		}
		out = append(out, core.TransactionSample{
			ID:          t.ID,
			Amount:      t.Amount,
			Kind:        t.Kind,
			Date:        t.Date,
			Description: t.Description,
			Category:    name,
		})
	}
	return out, nil
}
