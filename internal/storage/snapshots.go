package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const uncategorized = "Uncategorized"

// GetBudgets returns snapshots of the user's active budgets with their spend.
func (s *SQLStore) GetBudgets(ctx context.Context, userID string) ([]core.BudgetSnapshot, error) {
	budgets, err := s.listBudgets(ctx, budgetSelect+` WHERE b.user_id = ? AND b.is_active = ? ORDER BY b.period_start DESC, b.id`, userID, true)
	if err != nil {
		return nil, err
	}
	out := make([]core.BudgetSnapshot, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, BudgetSnapshot(b))
	}
	return out, nil
}

func (s *SQLStore) GetGoals(ctx context.Context, userID string) ([]core.GoalSnapshot, error) {
	goals, err := s.ListGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]core.GoalSnapshot, 0, len(goals))
	for _, g := range goals {
		out = append(out, GoalSnapshot(g))
	}
	return out, nil
}

// GetMonthlyTotals sums the user's transactions per kind for one calendar month.
func (s *SQLStore) GetMonthlyTotals(ctx context.Context, userID string, year, month int) ([]core.MonthlyTotal, error) {
	start := core.NewDate(year, month, 1)
	end := core.Monthly.End(start)

	rows, err := s.query(ctx, `SELECT kind, CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT), COUNT(*)
		FROM transactions
		WHERE user_id = ? AND date >= ? AND date <= ?
		GROUP BY kind
		ORDER BY kind`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query monthly totals: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlyTotal{}
	for rows.Next() {
		var kind string
		var cents int64
		var m core.MonthlyTotal
		if err := rows.Scan(&kind, &cents, &m.Count); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		m.Kind = core.TransactionKind(kind)
		m.Total = fromCents(cents)
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetCategoryTotals sums expenses per category name within [start, end],
// largest first. Transactions without a category are grouped as Uncategorized.
func (s *SQLStore) GetCategoryTotals(ctx context.Context, userID string, start, end core.Date) ([]core.CategoryTotal, error) {
	rows, err := s.query(ctx, `SELECT COALESCE(c.name, '`+uncategorized+`') AS category,
		CAST(COALESCE(SUM(t.amount_cents), 0) AS BIGINT) AS total, COUNT(*)
		FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.kind = 'expense' AND t.date >= ? AND t.date <= ?
		GROUP BY COALESCE(c.name, '`+uncategorized+`')
		ORDER BY total DESC, category`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		var cents int64
		if err := rows.Scan(&ct.Category, &cents, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Total = fromCents(cents)
		out = append(out, ct)
	}
	return out, rows.Err()
}

// GetRecentTransactions returns the newest transactions first, bounded by window.
func (s *SQLStore) GetRecentTransactions(ctx context.Context, userID string, window core.TransactionWindow) ([]core.TransactionSample, error) {
	query := `SELECT t.id, t.amount_cents, t.kind, t.date, t.description, COALESCE(c.name, '` + uncategorized + `')
		FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?`
	args := []any{userID}
	if window.Days > 0 {
		query += ` AND t.date >= ?`
		args = append(args, WindowStart(s.now(), window.Days).String())
	}
	query += ` ORDER BY t.date DESC, t.id`
	if window.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, window.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	out := []core.TransactionSample{}
	for rows.Next() {
		var ts core.TransactionSample
		var cents int64
		var kind string
		var date sqlDate
		if err := rows.Scan(&ts.ID, &cents, &kind, &date, &ts.Description, &ts.Category); err != nil {
			return nil, fmt.Errorf("scan transaction sample: %w", err)
		}
		ts.Amount = fromCents(cents)
		ts.Kind = core.TransactionKind(kind)
		ts.Date = date.Date
		out = append(out, ts)
	}
	return out, rows.Err()
}

// WindowStart is the first day included in a window of days ending at now.
func WindowStart(now time.Time, days int) core.Date {
	return core.DateOf(now.UTC().AddDate(0, 0, -days))
}
