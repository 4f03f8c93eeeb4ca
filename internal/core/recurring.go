package core

import (
	"github.com/shopspring/decimal"
)

const (
	ObligationBill         ObligationType = "bill"
	ObligationSubscription ObligationType = "subscription"
	ObligationDebt         ObligationType = "debt"
	ObligationOther        ObligationType = "other"
)

type (
	ObligationType string

	// RecurringTransaction is a template posted as a Transaction every
	// Frequency from StartDate. A debt tracks its outstanding Balance, which
	// each posting pays down; the template pauses once it reaches zero.
	RecurringTransaction struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id" validate:"required"`
		Name          string          `json:"name" validate:"required,max=100"`
		Type          ObligationType  `json:"type" validate:"oneof=bill subscription debt other"`
		Amount        decimal.Decimal `json:"amount"`
		Kind          TransactionKind `json:"kind" validate:"oneof=income expense"`
		CategoryID    string          `json:"category_id,omitempty"`
		PaymentMethod string          `json:"payment_method" validate:"max=50"`
		Frequency     Period          `json:"frequency" validate:"oneof=daily weekly monthly yearly"`
		StartDate     Date            `json:"start_date"`
		EndDate       Date            `json:"end_date"`
		Balance       decimal.Decimal `json:"balance"`
		LastExecution Date            `json:"last_execution"`
		Active        bool            `json:"is_active"`

		// Derived at read time.
		CategoryName string `json:"category_name,omitempty"`
	}

	// UpcomingTransaction is a recurring template with its next posting date.
	UpcomingTransaction struct {
		Recurring RecurringTransaction `json:"recurring"`
		DueDate   Date                 `json:"due_date"`
		DaysUntil int                  `json:"days_until"`
	}
)

func (t ObligationType) IsValid() bool {
	switch t {
	case ObligationBill, ObligationSubscription, ObligationDebt, ObligationOther:
		return true
	}
	return false
}

func (r RecurringTransaction) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(r); err != nil {
		fromValidator(err, &errs)
	}
	if !r.Amount.IsPositive() {
		errs.Add(NewValidationError("amount", "must be greater than zero"))
	}
	if r.StartDate.IsZero() {
		errs.Add(NewValidationError("start_date", "cannot be zero"))
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate.Time) {
		errs.Add(NewValidationError("end_date", "must not be before start_date"))
	}
	if r.Balance.IsNegative() {
		errs.Add(NewValidationError("balance", "cannot be negative"))
	}
	if r.Type == ObligationDebt && r.Kind != Expense {
		errs.Add(NewValidationError("kind", "debt payments must be expenses"))
	}
	return errs.Err()
}

// Ended reports whether on falls after the template's end date.
func (r RecurringTransaction) Ended(on Date) bool {
	return !r.EndDate.IsZero() && on.After(r.EndDate.Time)
}

// PaymentAmount is what the next posting charges: Amount, capped by the
// remaining Balance of a debt.
func (r RecurringTransaction) PaymentAmount() decimal.Decimal {
	if r.Type == ObligationDebt && r.Balance.IsPositive() && r.Balance.LessThan(r.Amount) {
		return r.Balance
	}
	return r.Amount
}

// Posted returns r after a posting of amount on day: the last execution moves
// forward, a debt's balance drops, and the template pauses when the debt is
// paid off or its end date has been reached.
func (r RecurringTransaction) Posted(amount decimal.Decimal, day Date) RecurringTransaction {
	r.LastExecution = day
	if r.Type == ObligationDebt && r.Balance.IsPositive() {
		r.Balance = decimal.Max(r.Balance.Sub(amount), decimal.Zero)
		if r.Balance.IsZero() {
			r.Active = false
		}
	}
	if !r.EndDate.IsZero() && !day.Before(r.EndDate.Time) {
		r.Active = false
	}
	return r
}

// RecurringFilter narrows ListRecurring; zero fields are ignored.
type RecurringFilter struct {
	ActiveOnly bool
	Type       ObligationType
}
