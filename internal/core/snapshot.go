package core

import (
	"github.com/shopspring/decimal"
)

// Snapshots are read-only, point-in-time views fetched for one analysis pass.
type (
	BudgetSnapshot struct {
		Category string          `json:"category"`
		Limit    decimal.Decimal `json:"limit"`
		Spent    decimal.Decimal `json:"spent"` // may exceed Limit
		Active   bool            `json:"active"`
	}

	GoalSnapshot struct {
		Name       string          `json:"name"`
		Target     decimal.Decimal `json:"target"`
		Current    decimal.Decimal `json:"current"`
		TargetDate *Date           `json:"target_date,omitempty"`
		Completed  bool            `json:"completed"`
	}

	MonthlyTotal struct {
		Kind  TransactionKind `json:"kind"`
		Total decimal.Decimal `json:"total"`
		Count int             `json:"count"`
	}

	CategoryTotal struct {
		Category string          `json:"category"`
		Total    decimal.Decimal `json:"total"`
		Count    int             `json:"count"`
	}

	TransactionSample struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Kind        TransactionKind `json:"kind"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
	}

	// TransactionWindow bounds GetRecentTransactions. Days keeps transactions dated
	// within the last Days days, Limit caps the count; zero disables either bound.
	TransactionWindow struct {
		Days  int
		Limit int
	}
)

// Progress returns current/target as a percentage, or 0 when the target is not positive.
func (g GoalSnapshot) Progress() float64 {
	if !g.Target.IsPositive() {
		return 0
	}
	return g.Current.Div(g.Target).InexactFloat64() * 100
}

// SumByKind adds up the totals of one transaction kind.
func SumByKind(totals []MonthlyTotal, kind TransactionKind) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		if t.Kind == kind {
			sum = sum.Add(t.Total)
		}
	}
	return sum
}
