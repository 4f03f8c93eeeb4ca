package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func loan() RecurringTransaction {
	return RecurringTransaction{
		UserID:        "u1",
		Name:          "Car loan",
		Type:          ObligationDebt,
		Amount:        decimal.NewFromInt(150),
		Kind:          Expense,
		PaymentMethod: "transfer",
		Frequency:     Monthly,
		StartDate:     NewDate(2025, 1, 10),
		Balance:       decimal.NewFromInt(200),
		Active:        true,
	}
}

func TestRecurringValidate(t *testing.T) {
	if err := loan().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]func(r *RecurringTransaction){
		"zero amount":     func(r *RecurringTransaction) { r.Amount = decimal.Zero },
		"no start":        func(r *RecurringTransaction) { r.StartDate = Date{} },
		"end before":      func(r *RecurringTransaction) { r.EndDate = NewDate(2024, 12, 31) },
		"negative debt":   func(r *RecurringTransaction) { r.Balance = decimal.NewFromInt(-1) },
		"income debt":     func(r *RecurringTransaction) { r.Kind = Income },
		"unknown type":    func(r *RecurringTransaction) { r.Type = "loan" },
		"hourly":          func(r *RecurringTransaction) { r.Frequency = "hourly" },
		"missing name":    func(r *RecurringTransaction) { r.Name = "" },
		"missing user ID": func(r *RecurringTransaction) { r.UserID = "" },
	}
	for name, mutate := range bads {
		r := loan()
		mutate(&r)
		if err := r.Validate(); err == nil || !IsValidationError(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	income := loan()
	income.Type, income.Kind, income.Balance = ObligationOther, Income, decimal.Zero
	if err := income.Validate(); err != nil {
		t.Fatalf("recurring income should be valid, got %v", err)
	}
}

func TestRecurringEnded(t *testing.T) {
	r := loan()
	if r.Ended(NewDate(2099, 1, 1)) {
		t.Fatalf("open-ended template never ends")
	}
	r.EndDate = NewDate(2025, 6, 30)
	if r.Ended(NewDate(2025, 6, 30)) {
		t.Fatalf("end date itself is still in range")
	}
	if !r.Ended(NewDate(2025, 7, 1)) {
		t.Fatalf("expected ended after end date")
	}
}

func TestRecurringPaymentAmount(t *testing.T) {
	r := loan()
	if got := r.PaymentAmount().String(); got != "150" {
		t.Fatalf("expected full amount, got %s", got)
	}
	r.Balance = decimal.NewFromInt(40)
	if got := r.PaymentAmount().String(); got != "40" {
		t.Fatalf("expected capped amount, got %s", got)
	}

	bill := r
	bill.Type = ObligationBill
	if got := bill.PaymentAmount().String(); got != "150" {
		t.Fatalf("balance only caps debts, got %s", got)
	}
}

func TestRecurringPosted(t *testing.T) {
	r := loan()

	first := r.Posted(r.PaymentAmount(), NewDate(2025, 1, 10))
	if first.LastExecution.String() != "2025-01-10" || first.Balance.String() != "50" || !first.Active {
		t.Fatalf("unexpected first posting %+v", first)
	}

	last := first.Posted(first.PaymentAmount(), NewDate(2025, 2, 10))
	if !last.Balance.IsZero() || last.Active {
		t.Fatalf("expected paid-off debt to pause, got %+v", last)
	}

	sub := loan()
	sub.Type, sub.Balance = ObligationSubscription, decimal.Zero
	sub.EndDate = NewDate(2025, 3, 10)
	if got := sub.Posted(sub.Amount, NewDate(2025, 2, 10)); !got.Active {
		t.Fatalf("expected subscription to stay active before its end date")
	}
	if got := sub.Posted(sub.Amount, NewDate(2025, 3, 10)); got.Active {
		t.Fatalf("expected subscription to pause on its end date")
	}
}
