package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// DemoEmail identifies the user created by SeedDemo.
const DemoEmail = "demo@fintrack.local"

// SeedSummary reports what SeedDemo wrote.
type SeedSummary struct {
	User         core.User
	Transactions int
	Budgets      int
	Goals        int
	Recurring    int
}

// SeedDemo writes roughly three months of history ending at now for a fresh
// demo user: salary and rent, regular groceries and dining, a dining spike in
// the last week, one outsized purchase, two monthly budgets, a savings goal
// and two recurring templates that first fall due after now. Everything is
// written in one transaction.
func SeedDemo(ctx context.Context, store storage.Store, now time.Time) (SeedSummary, error) {
	var sum SeedSummary
	err := store.WithTx(ctx, func(tx storage.Store) error {
		u, err := tx.CreateUser(ctx, core.User{Email: DemoEmail, Name: "Demo User"})
		if err != nil {
			return fmt.Errorf("create demo user: %w", err)
		}
		sum.User = u

		cats := make(map[string]string)
		for _, c := range []core.Category{
			{Name: "Salary", Kind: core.Income},
			{Name: "Rent", Kind: core.Expense},
			{Name: "Groceries", Kind: core.Expense},
			{Name: "Dining", Kind: core.Expense},
			{Name: "Electronics", Kind: core.Expense},
		} {
			c.UserID = u.ID
			created, err := tx.CreateCategory(ctx, c)
			if err != nil {
				return fmt.Errorf("create category %s: %w", c.Name, err)
			}
			cats[c.Name] = created.ID
		}

		add := func(category string, kind core.TransactionKind, cents int64, day time.Time, desc, method string) error {
			_, err := tx.CreateTransaction(ctx, core.Transaction{
				UserID:        u.ID,
				Amount:        decimal.New(cents, -2),
				Kind:          kind,
				CategoryID:    cats[category],
				Description:   desc,
				PaymentMethod: method,
				Date:          core.DateOf(day),
			})
			if err != nil {
				return fmt.Errorf("create %s transaction: %w", category, err)
			}
			sum.Transactions++
			return nil
		}

		today := core.DateOf(now)
		monthStart := core.NewDate(today.Year(), int(today.Month()), 1)

		for m := 2; m >= 0; m-- {
			first := monthStart.AddDate(0, -m, 0)
			if err := add("Salary", core.Income, 320000, first, "Monthly salary", "transfer"); err != nil {
				return err
			}
			if err := add("Rent", core.Expense, 120000, first, "Apartment rent", "transfer"); err != nil {
				return err
			}
		}

		for i, day := 0, today.AddDate(0, 0, -88); !day.After(today.Time); i, day = i+1, day.AddDate(0, 0, 4) {
			cents := int64(4500 + (i*731)%3100)
			if err := add("Groceries", core.Expense, cents, day, "Supermarket", "card"); err != nil {
				return err
			}
		}
		for i, day := 0, today.AddDate(0, 0, -84); day.Before(today.AddDate(0, 0, -7)); i, day = i+1, day.AddDate(0, 0, 7) {
			cents := int64(2200 + (i*397)%1500)
			if err := add("Dining", core.Expense, cents, day, "Dinner out", "card"); err != nil {
				return err
			}
		}
		for d := 6; d >= 1; d -= 2 {
			if err := add("Dining", core.Expense, 9800, today.AddDate(0, 0, -d), "Restaurant", "card"); err != nil {
				return err
			}
		}
		if err := add("Electronics", core.Expense, 149900, today.AddDate(0, 0, -3), "Laptop", "card"); err != nil {
			return err
		}

		groceries, err := tx.ListTransactions(ctx, u.ID, core.TransactionFilter{
			Kind:       core.Expense,
			CategoryID: cats["Groceries"],
			Start:      monthStart,
			End:        today,
		})
		if err != nil {
			return fmt.Errorf("list groceries: %w", err)
		}
		spent := decimal.Zero
		for _, t := range groceries {
			spent = spent.Add(t.Amount)
		}
		// Sized so this month's grocery spend sits just under the limit.
		groceryLimit := decimal.Max(spent.Div(decimal.NewFromFloat(0.95)).Ceil(), decimal.NewFromInt(200))

		for _, b := range []core.Budget{
			{CategoryID: cats["Groceries"], Amount: groceryLimit},
			{CategoryID: cats["Dining"], Amount: decimal.NewFromInt(600)},
		} {
			b.UserID = u.ID
			b.Period = core.Monthly
			b.PeriodStart = monthStart
			b.Active = true
			if _, err := tx.CreateBudget(ctx, b); err != nil {
				return fmt.Errorf("create budget: %w", err)
			}
			sum.Budgets++
		}

		goal, err := tx.CreateGoal(ctx, core.Goal{
			UserID:      u.ID,
			Name:        "Emergency fund",
			Description: "Three months of expenses",
			Target:      decimal.NewFromInt(6000),
			StartDate:   core.DateOf(monthStart.AddDate(0, -2, 0)),
			TargetDate:  core.DateOf(monthStart.AddDate(0, 6, 0)),
			Priority:    5,
		})
		if err != nil {
			return fmt.Errorf("create goal: %w", err)
		}
		sum.Goals++
		if _, err := tx.AddContribution(ctx, u.ID, goal.ID, decimal.NewFromInt(500)); err != nil {
			return fmt.Errorf("contribute to goal: %w", err)
		}
		sum.Transactions++

		for _, r := range []core.RecurringTransaction{
			{
				Name:       "Apartment rent",
				Type:       core.ObligationBill,
				Amount:     decimal.NewFromInt(1200),
				CategoryID: cats["Rent"],
				StartDate:  core.DateOf(monthStart.AddDate(0, 1, 0)),
			},
			{
				Name:      "Streaming",
				Type:      core.ObligationSubscription,
				Amount:    decimal.New(1299, -2),
				StartDate: core.DateOf(today.AddDate(0, 0, 5)),
			},
		} {
			r.UserID = u.ID
			r.Frequency = core.Monthly
			r.PaymentMethod = "card"
			if _, err := tx.CreateRecurring(ctx, r); err != nil {
				return fmt.Errorf("create recurring %s: %w", r.Name, err)
			}
			sum.Recurring++
		}
		return nil
	})
	if err != nil {
		return SeedSummary{}, err
	}
	return sum, nil
}
