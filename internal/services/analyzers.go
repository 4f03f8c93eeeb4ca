package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Analyzer is one rule set of the recommendation engine. Implementations must
// return an empty slice, not an error, when their snapshot is empty.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, userID string, now time.Time) ([]core.Recommendation, error)
}

// DefaultAnalyzers returns the built-in analyzers in execution order.
func DefaultAnalyzers(p DataProvider) []Analyzer {
	return []Analyzer{
		BudgetAnalyzer{provider: p},
		GoalAnalyzer{provider: p},
		TrendAnalyzer{provider: p},
		SavingsRateAnalyzer{provider: p},
		ConcentrationAnalyzer{provider: p},
	}
}

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole*100; whole must be non-zero.
func percentOf(part, whole decimal.Decimal) float64 {
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// BudgetAnalyzer reports how much of each active budget has been used.
type BudgetAnalyzer struct {
	provider DataProvider
}

func (BudgetAnalyzer) Name() string { return "budgets" }

func (a BudgetAnalyzer) Analyze(ctx context.Context, userID string, _ time.Time) ([]core.Recommendation, error) {
	budgets, err := a.provider.GetBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get budgets: %w", err)
	}

	var recs []core.Recommendation
	for _, b := range budgets {
		if !b.Active || !b.Limit.IsPositive() {
			continue
		}
		usage := percentOf(b.Spent, b.Limit)
		remaining := b.Limit.Sub(b.Spent)
		details := map[string]float64{
			"usage_percent": usage,
			"remaining":     remaining.InexactFloat64(),
			"limit":         b.Limit.InexactFloat64(),
		}

		switch {
		case usage >= 90:
			recs = append(recs, core.Recommendation{
				Kind:             core.KindWarning,
				Code:             "budget_nearly_exhausted",
				Title:            fmt.Sprintf("%s budget almost used up", b.Category),
				Message:          fmt.Sprintf("You have used %.0f%% of your %s budget; %s remains.", usage, b.Category, remaining.StringFixed(2)),
				Subject:          b.Category,
				Priority:         10,
				PotentialSavings: decimal.Zero,
				Details:          details,
			})
		case usage >= 75:
			recs = append(recs, core.Recommendation{
				Kind:             core.KindAlert,
				Code:             "budget_high_usage",
				Title:            fmt.Sprintf("%s budget running low", b.Category),
				Message:          fmt.Sprintf("You have used %.0f%% of your %s budget. Slow down spending in this category.", usage, b.Category),
				Subject:          b.Category,
				Priority:         7,
				PotentialSavings: decimal.Zero,
				Details:          details,
			})
		case usage < 50:
			recs = append(recs, core.Recommendation{
				Kind:             core.KindSuccess,
				Code:             "budget_on_track",
				Title:            fmt.Sprintf("%s budget on track", b.Category),
				Message:          fmt.Sprintf("Only %.0f%% of your %s budget is used. Keep it up.", usage, b.Category),
				Subject:          b.Category,
				Priority:         3,
				PotentialSavings: decimal.Zero,
				Details:          details,
			})
		}
	}
	return recs, nil
}

// GoalAnalyzer paces incomplete savings goals against their target dates.
type GoalAnalyzer struct {
	provider DataProvider
}

func (GoalAnalyzer) Name() string { return "goals" }

func (a GoalAnalyzer) Analyze(ctx context.Context, userID string, now time.Time) ([]core.Recommendation, error) {
	goals, err := a.provider.GetGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get goals: %w", err)
	}

	today := core.DateOf(now)
	var recs []core.Recommendation
	for _, g := range goals {
		if g.Completed || !g.Target.IsPositive() {
			continue
		}
		progress := g.Progress()
		remaining := g.Target.Sub(g.Current)

		if g.TargetDate != nil {
			if days := today.DaysUntil(*g.TargetDate); days > 0 {
				// months = days/30, so remaining/months = remaining*30/days
				monthly := remaining.Mul(decimal.NewFromInt(30)).Div(decimal.NewFromInt(int64(days))).Round(2)
				if monthly.IsPositive() {
					recs = append(recs, core.Recommendation{
						Kind:             core.KindGoal,
						Code:             "goal_monthly_pace",
						Title:            fmt.Sprintf("Stay on pace for %s", g.Name),
						Message:          fmt.Sprintf("Save %s per month to reach %s by %s.", monthly.StringFixed(2), g.Name, g.TargetDate),
						Subject:          g.Name,
						Priority:         6,
						PotentialSavings: decimal.Zero,
						Details: map[string]float64{
							"monthly_needed":   monthly.InexactFloat64(),
							"remaining":        remaining.InexactFloat64(),
							"days_left":        float64(days),
							"progress_percent": progress,
						},
					})
				}
			}
		}

		if progress < 25 {
			recs = append(recs, core.Recommendation{
				Kind:             core.KindReminder,
				Code:             "goal_low_progress",
				Title:            fmt.Sprintf("%s needs attention", g.Name),
				Message:          fmt.Sprintf("%s is %.0f%% funded. Contribute more often to build momentum.", g.Name, progress),
				Subject:          g.Name,
				Priority:         5,
				PotentialSavings: decimal.Zero,
				Details: map[string]float64{
					"progress_percent": progress,
					"remaining":        remaining.InexactFloat64(),
				},
			})
		}
	}
	return recs, nil
}

// TrendAnalyzer compares this calendar month's expenses with the previous one.
type TrendAnalyzer struct {
	provider DataProvider
}

func (TrendAnalyzer) Name() string { return "trend" }

func (a TrendAnalyzer) Analyze(ctx context.Context, userID string, now time.Time) ([]core.Recommendation, error) {
	prev := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)

	current, err := a.provider.GetMonthlyTotals(ctx, userID, now.Year(), int(now.Month()))
	if err != nil {
		return nil, fmt.Errorf("get monthly totals: %w", err)
	}
	previous, err := a.provider.GetMonthlyTotals(ctx, userID, prev.Year(), int(prev.Month()))
	if err != nil {
		return nil, fmt.Errorf("get previous monthly totals: %w", err)
	}

	thisMonth := core.SumByKind(current, core.Expense)
	lastMonth := core.SumByKind(previous, core.Expense)
	if lastMonth.IsZero() {
		return nil, nil
	}
	change := percentOf(thisMonth.Sub(lastMonth), lastMonth)
	details := map[string]float64{
		"change_percent": change,
		"this_month":     thisMonth.InexactFloat64(),
		"last_month":     lastMonth.InexactFloat64(),
	}

	switch {
	case change > 20:
		return []core.Recommendation{{
			Kind:             core.KindWarning,
			Code:             "spending_increase",
			Title:            "Spending is up this month",
			Message:          fmt.Sprintf("Expenses rose %.0f%% compared with last month.", change),
			Priority:         8,
			PotentialSavings: thisMonth.Sub(lastMonth),
			Details:          details,
		}}, nil
	case change < -10:
		return []core.Recommendation{{
			Kind:             core.KindSuccess,
			Code:             "spending_decrease",
			Title:            "Spending is down this month",
			Message:          fmt.Sprintf("Expenses fell %.0f%% compared with last month. Nice work.", -change),
			Priority:         4,
			PotentialSavings: decimal.Zero,
			Details:          details,
		}}, nil
	}
	return nil, nil
}

// SavingsRateAnalyzer measures the share of income kept over the last 30 days.
type SavingsRateAnalyzer struct {
	provider DataProvider
}

func (SavingsRateAnalyzer) Name() string { return "savings" }

func (a SavingsRateAnalyzer) Analyze(ctx context.Context, userID string, _ time.Time) ([]core.Recommendation, error) {
	txs, err := a.provider.GetRecentTransactions(ctx, userID, core.TransactionWindow{Days: savingsLookbackDays})
	if err != nil {
		return nil, fmt.Errorf("get recent transactions: %w", err)
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	if !income.IsPositive() {
		return nil, nil
	}

	net := income.Sub(expense)
	rate := percentOf(net, income)
	details := map[string]float64{
		"savings_rate_percent": rate,
		"income":               income.InexactFloat64(),
		"expense":              expense.InexactFloat64(),
	}

	switch {
	case rate < 0:
		return []core.Recommendation{{
			Kind:             core.KindDanger,
			Code:             "overspending",
			Title:            "Spending exceeds income",
			Message:          fmt.Sprintf("Over the last 30 days you spent %s more than you earned.", net.Abs().StringFixed(2)),
			Priority:         10,
			PotentialSavings: net.Abs(),
			Details:          details,
		}}, nil
	case rate < 10:
		target := income.Mul(decimal.NewFromFloat(0.2))
		details["target_savings"] = target.InexactFloat64()
		return []core.Recommendation{{
			Kind:             core.KindWarning,
			Code:             "low_savings_rate",
			Title:            "Low savings rate",
			Message:          fmt.Sprintf("You saved %.0f%% of your income. Aim for 20%% by saving %s more.", rate, target.Sub(net).StringFixed(2)),
			Priority:         7,
			PotentialSavings: target.Sub(net),
			Details:          details,
		}}, nil
	case rate >= 30:
		return []core.Recommendation{{
			Kind:             core.KindSuccess,
			Code:             "high_savings_rate",
			Title:            "Great savings rate",
			Message:          fmt.Sprintf("You saved %.0f%% of your income. Consider investing the surplus.", rate),
			Priority:         2,
			PotentialSavings: decimal.Zero,
			Details:          details,
		}}, nil
	}
	return nil, nil
}

// ConcentrationAnalyzer flags a category that dominates this month's spending.
// Shares are computed against the true total, so at most one category can pass 50%.
type ConcentrationAnalyzer struct {
	provider DataProvider
}

func (ConcentrationAnalyzer) Name() string { return "concentration" }

func (a ConcentrationAnalyzer) Analyze(ctx context.Context, userID string, now time.Time) ([]core.Recommendation, error) {
	start := core.NewDate(now.Year(), int(now.Month()), 1)
	end := core.Monthly.End(start)

	totals, err := a.provider.GetCategoryTotals(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get category totals: %w", err)
	}

	total := decimal.Zero
	for _, t := range totals {
		total = total.Add(t.Total)
	}
	if !total.IsPositive() {
		return nil, nil
	}

	var recs []core.Recommendation
	for _, t := range totals {
		share := percentOf(t.Total, total)
		if share <= 50 {
			continue
		}
		recs = append(recs, core.Recommendation{
			Kind:             core.KindAlert,
			Code:             "category_concentration",
			Title:            fmt.Sprintf("%s dominates your spending", t.Category),
			Message:          fmt.Sprintf("%s accounts for %.0f%% of this month's spending. Consider spreading your budget.", t.Category, share),
			Subject:          t.Category,
			Priority:         6,
			PotentialSavings: t.Total.Mul(decimal.NewFromFloat(0.3)).Round(2),
			Details: map[string]float64{
				"share_percent": share,
				"amount":        t.Total.InexactFloat64(),
			},
		})
	}
	return recs, nil
}
