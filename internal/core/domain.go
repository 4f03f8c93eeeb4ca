package core

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

const dateLayout = "2006-01-02"

type (
	TransactionKind string

	Period string

	// Date is a calendar day in UTC.
	Date struct {
		time.Time
	}

	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email" validate:"required,email,max=254"`
		Name      string    `json:"name" validate:"required,max=100"`
		CreatedAt time.Time `json:"created_at"`
	}

	Category struct {
		ID     string          `json:"id"`
		UserID string          `json:"user_id" validate:"required"`
		Name   string          `json:"name" validate:"required,max=100"`
		Kind   TransactionKind `json:"kind" validate:"oneof=income expense"`
	}

	Transaction struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id" validate:"required"`
		Amount        decimal.Decimal `json:"amount"`
		Kind          TransactionKind `json:"kind" validate:"oneof=income expense"`
		CategoryID    string          `json:"category_id,omitempty"`
		Description   string          `json:"description" validate:"max=200"`
		PaymentMethod string          `json:"payment_method" validate:"max=50"`
		Date          Date            `json:"date"`
	}

	Budget struct {
		ID          string          `json:"id"`
		UserID      string          `json:"user_id" validate:"required"`
		CategoryID  string          `json:"category_id,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Period      Period          `json:"period" validate:"oneof=daily weekly monthly yearly"`
		PeriodStart Date            `json:"period_start"`
		PeriodEnd   Date            `json:"period_end"`
		Active      bool            `json:"is_active"`

		// Derived at read time.
		CategoryName string          `json:"category_name,omitempty"`
		Spent        decimal.Decimal `json:"spent"`
	}

	Goal struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id" validate:"required"`
		Name          string          `json:"name" validate:"required,max=100"`
		Description   string          `json:"description" validate:"max=500"`
		Target        decimal.Decimal `json:"target_amount"`
		Current       decimal.Decimal `json:"current_amount"`
		StartDate     Date            `json:"start_date"`
		TargetDate    Date            `json:"target_date"`
		Priority      int             `json:"priority" validate:"min=1,max=5"`
		Completed     bool            `json:"is_completed"`
		CompletedDate Date            `json:"completed_date"`
	}

	// TransactionFilter narrows ListTransactions; zero fields are ignored.
	TransactionFilter struct {
		Kind       TransactionKind
		CategoryID string
		Start      Date
		End        Date
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (k TransactionKind) IsValid() bool {
	return k == Income || k == Expense
}

func (p Period) IsValid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// End returns the last day covered by a period starting on start.
// Unknown periods cover thirty days.
func (p Period) End(start Date) Date {
	t := start.Time
	switch p {
	case Daily:
		return start
	case Weekly:
		return Date{Time: t.AddDate(0, 0, 6)}
	case Monthly:
		return Date{Time: time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)}
	case Yearly:
		return NewDate(t.Year(), 12, 31)
	default:
		return Date{Time: t.AddDate(0, 0, 30)}
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts a bare YYYY-MM-DD day or a full RFC 3339 timestamp, which
// is truncated to its UTC calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t.UTC()), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// DaysUntil counts whole days from d to other; negative when other is earlier.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (u User) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(u); err != nil {
		fromValidator(err, &errs)
	}
	return errs.Err()
}

func (c Category) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(c); err != nil {
		fromValidator(err, &errs)
	}
	return errs.Err()
}

func (t Transaction) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(t); err != nil {
		fromValidator(err, &errs)
	}
	if !t.Amount.IsPositive() {
		errs.Add(NewValidationError("amount", "must be greater than zero"))
	}
	if t.Date.IsZero() {
		errs.Add(NewValidationError("date", "cannot be zero"))
	}
	return errs.Err()
}

func (b Budget) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(b); err != nil {
		fromValidator(err, &errs)
	}
	if b.Amount.IsNegative() {
		errs.Add(NewValidationError("amount", "cannot be negative"))
	}
	if b.PeriodStart.IsZero() {
		errs.Add(NewValidationError("period_start", "cannot be zero"))
	}
	if !b.PeriodEnd.IsZero() && b.PeriodEnd.Before(b.PeriodStart.Time) {
		errs.Add(NewValidationError("period_end", "must not be before period_start"))
	}
	return errs.Err()
}

func (g Goal) Validate() error {
	var errs ValidationErrors
	if err := validate.Struct(g); err != nil {
		fromValidator(err, &errs)
	}
	if !g.Target.IsPositive() {
		errs.Add(NewValidationError("target_amount", "must be greater than zero"))
	}
	if g.Current.IsNegative() {
		errs.Add(NewValidationError("current_amount", "cannot be negative"))
	}
	if g.TargetDate.IsZero() {
		errs.Add(NewValidationError("target_date", "cannot be zero"))
	} else if !g.StartDate.IsZero() && g.TargetDate.Before(g.StartDate.Time) {
		errs.Add(NewValidationError("target_date", "must not be before start_date"))
	}
	return errs.Err()
}
