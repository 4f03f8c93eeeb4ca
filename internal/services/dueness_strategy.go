// This file implements the Strategy Pattern for recurring transaction dueness.
// Each frequency (daily, weekly, monthly, yearly) has its own strategy that
// decides whether a template is due and when it will next be due.

package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// DuenessChecker is the strategy interface for recurring transaction schedules.
// A template that never ran is due from its start date.
type DuenessChecker interface {
	// IsDue reports whether a template last posted on lastExecution should
	// post again on today.
	IsDue(lastExecution, today, start core.Date) bool
	// NextDue returns the first day the template is due after lastExecution.
	NextDue(lastExecution, start core.Date) core.Date
}

// DailyChecker posts once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastExecution, today, start core.Date) bool {
	if lastExecution.IsZero() {
		return !today.Before(start.Time)
	}
	return today.After(lastExecution.Time)
}

func (DailyChecker) NextDue(lastExecution, start core.Date) core.Date {
	if lastExecution.IsZero() {
		return start
	}
	return core.DateOf(lastExecution.AddDate(0, 0, 1))
}

// WeeklyChecker posts when 7 or more days have passed since the last posting.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastExecution, today, start core.Date) bool {
	if lastExecution.IsZero() {
		return !today.Before(start.Time)
	}
	return lastExecution.DaysUntil(today) >= 7
}

func (WeeklyChecker) NextDue(lastExecution, start core.Date) core.Date {
	if lastExecution.IsZero() {
		return start
	}
	return core.DateOf(lastExecution.AddDate(0, 0, 7))
}

// MonthlyChecker posts once per month on the start date's day, clamped to the
// last day of shorter months.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, today, start core.Date) bool {
	if lastExecution.IsZero() {
		return !today.Before(start.Time)
	}

	// Already processed this month?
	months := monthsBetween(lastExecution, today)
	if months <= 0 {
		return false
	}
	// A whole month was missed: catch up now.
	if months > 1 {
		return true
	}
	return today.Day() >= clampDay(today.Year(), today.Month(), start.Day())
}

func (MonthlyChecker) NextDue(lastExecution, start core.Date) core.Date {
	if lastExecution.IsZero() {
		return start
	}
	first := time.Date(lastExecution.Year(), lastExecution.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return core.NewDate(first.Year(), int(first.Month()), clampDay(first.Year(), first.Month(), start.Day()))
}

// YearlyChecker posts once per year on the start date's month and day.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastExecution, today, start core.Date) bool {
	if lastExecution.IsZero() {
		return !today.Before(start.Time)
	}

	// Already processed this year?
	years := today.Year() - lastExecution.Year()
	if years <= 0 {
		return false
	}
	if years > 1 {
		return true
	}

	if today.Month() < start.Month() {
		return false
	}
	if today.Month() == start.Month() {
		return today.Day() >= clampDay(today.Year(), today.Month(), start.Day())
	}
	// We're past the target month
	return true
}

func (YearlyChecker) NextDue(lastExecution, start core.Date) core.Date {
	if lastExecution.IsZero() {
		return start
	}
	year := lastExecution.Year() + 1
	return core.NewDate(year, int(start.Month()), clampDay(year, start.Month(), start.Day()))
}

func monthsBetween(from, to core.Date) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// clampDay limits day to the length of the given month, so a template started
// on the 31st posts on the 28th or 29th in February.
func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// duenessStrategies maps frequencies to their corresponding checkers.
var duenessStrategies = map[core.Period]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the dueness checker for a frequency.
func GetDuenessChecker(frequency core.Period) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new frequency.
func RegisterDuenessChecker(frequency core.Period, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
