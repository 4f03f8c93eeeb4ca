package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPeriodEnd(t *testing.T) {
	cases := []struct {
		period Period
		start  Date
		want   string
	}{
		{Daily, NewDate(2025, 3, 10), "2025-03-10"},
		{Weekly, NewDate(2025, 3, 10), "2025-03-16"},
		{Monthly, NewDate(2025, 2, 3), "2025-02-28"},
		{Monthly, NewDate(2024, 2, 1), "2024-02-29"},
		{Monthly, NewDate(2025, 12, 15), "2025-12-31"},
		{Yearly, NewDate(2025, 6, 1), "2025-12-31"},
		{Period("fortnightly"), NewDate(2025, 1, 1), "2025-01-31"},
	}
	for _, tc := range cases {
		if got := tc.period.End(tc.start).String(); got != tc.want {
			t.Fatalf("%s from %s: expected %s, got %s", tc.period, tc.start, tc.want, got)
		}
	}
}

func TestParseDate(t *testing.T) {
	valid := map[string]string{
		"2025-04-05":                "2025-04-05",
		" 2025-04-05 ":              "2025-04-05",
		"2025-04-05T10:11:12Z":      "2025-04-05",
		"2025-04-05T23:30:00-02:00": "2025-04-06",
		"2025-04-05T10:11:12.5Z":    "2025-04-05",
	}
	for in, want := range valid {
		d, err := ParseDate(in)
		if err != nil || d.String() != want {
			t.Fatalf("%q: expected %s, got %s (err=%v)", in, want, d, err)
		}
	}

	invalid := []string{
		"05/04/2025",
		"2025-01-01garbage",
		"2025-01-01T",
		"2025-01-01 10:11:12",
		"2025-13-01",
		"",
	}
	for _, in := range invalid {
		if _, err := ParseDate(in); err != ErrInvalidDate {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		A Date `json:"a"`
		B Date `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"2025-01-02","b":null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A.String() != "2025-01-02" || !payload.B.IsZero() {
		t.Fatalf("unexpected dates: %+v", payload)
	}
	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"a":"2025-01-02","b":null}` {
		t.Fatalf("unexpected json %s", out)
	}
}

func TestDaysUntil(t *testing.T) {
	a := NewDate(2025, 1, 1)
	if n := a.DaysUntil(NewDate(2025, 3, 2)); n != 60 {
		t.Fatalf("expected 60, got %d", n)
	}
	if n := a.DaysUntil(NewDate(2024, 12, 31)); n != -1 {
		t.Fatalf("expected -1, got %d", n)
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2025, 7, 9, 23, 59, 0, 0, time.UTC)
	if DateOf(ts).String() != "2025-07-09" {
		t.Fatalf("unexpected day %s", DateOf(ts))
	}
}

func TestUserValidate(t *testing.T) {
	if err := (User{Email: "a@b.io", Name: "Ann"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	err := (User{Email: "not-an-email"}).Validate()
	if err == nil || !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	ves, ok := err.(*ValidationErrors)
	if !ok || len(ves.Errors) != 2 {
		t.Fatalf("expected two collected errors, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID: "u1",
		Amount: decimal.RequireFromString("12.50"),
		Kind:   Expense,
		Date:   NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{UserID: "u1", Amount: decimal.Zero, Kind: Expense, Date: NewDate(2025, 1, 1)},
		{UserID: "u1", Amount: decimal.NewFromInt(-3), Kind: Expense, Date: NewDate(2025, 1, 1)},
		{UserID: "u1", Amount: decimal.NewFromInt(1), Kind: "transfer", Date: NewDate(2025, 1, 1)},
		{UserID: "u1", Amount: decimal.NewFromInt(1), Kind: Income},
		{Amount: decimal.NewFromInt(1), Kind: Income, Date: NewDate(2025, 1, 1)},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil || !IsValidationError(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		UserID:      "u1",
		Amount:      decimal.NewFromInt(500),
		Period:      Monthly,
		PeriodStart: NewDate(2025, 1, 1),
		PeriodEnd:   NewDate(2025, 1, 31),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	reversed := good
	reversed.PeriodEnd = NewDate(2024, 12, 1)
	if err := reversed.Validate(); err == nil {
		t.Fatalf("expected error for end before start")
	}

	badPeriod := good
	badPeriod.Period = "hourly"
	if err := badPeriod.Validate(); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestGoalValidate(t *testing.T) {
	g := Goal{
		UserID:     "u1",
		Name:       "Holiday",
		Target:     decimal.NewFromInt(1200),
		StartDate:  NewDate(2025, 1, 1),
		TargetDate: NewDate(2025, 7, 1),
		Priority:   3,
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	early := g
	early.TargetDate = NewDate(2024, 12, 1)
	if err := early.Validate(); err == nil {
		t.Fatalf("expected error for target before start")
	}

	g.Priority = 9
	if err := g.Validate(); err == nil {
		t.Fatalf("expected priority error")
	}
}

func TestGoalSnapshotProgress(t *testing.T) {
	g := GoalSnapshot{Target: decimal.NewFromInt(200), Current: decimal.NewFromInt(50)}
	if p := g.Progress(); p != 25 {
		t.Fatalf("expected 25, got %v", p)
	}
	if p := (GoalSnapshot{Current: decimal.NewFromInt(5)}).Progress(); p != 0 {
		t.Fatalf("expected 0 for zero target, got %v", p)
	}
}

func TestSumByKind(t *testing.T) {
	totals := []MonthlyTotal{
		{Kind: Income, Total: decimal.NewFromInt(1000)},
		{Kind: Expense, Total: decimal.RequireFromString("250.25")},
		{Kind: Expense, Total: decimal.RequireFromString("49.75")},
	}
	if got := SumByKind(totals, Expense).String(); got != "300" {
		t.Fatalf("expected 300, got %s", got)
	}
	if got := SumByKind(nil, Income); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}
