package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EntityTransaction Entity = "transaction"
	EntityBudget      Entity = "budget"
	EntityGoal        Entity = "goal"
	EntityRecurring   Entity = "recurring transaction"
)

type Entity string

// FieldUpdate is one validated column assignment. Value holds a typed Go value:
// decimal.Decimal, Date, TransactionKind, string, bool or int.
type FieldUpdate struct {
	Column string
	Value  any
}

// Patch is an ordered set of validated updates for one entity.
type Patch []FieldUpdate

// Get returns the value assigned to column, if any.
func (p Patch) Get(column string) (any, bool) {
	for _, u := range p {
		if u.Column == column {
			return u.Value, true
		}
	}
	return nil, false
}

type fieldParser func(v any) (any, error)

// mutableFields is the allow-list: anything not named here is rejected.
var mutableFields = map[Entity]map[string]fieldParser{
	EntityTransaction: {
		"amount":         positiveAmount,
		"kind":           transactionKind,
		"category_id":    optionalID,
		"description":    text(200, false),
		"payment_method": text(50, true),
		"date":           calendarDate,
	},
	EntityBudget: {
		"amount":       nonNegativeAmount,
		"category_id":  optionalID,
		"period_start": calendarDate,
		"period_end":   calendarDate,
		"is_active":    boolean,
	},
	EntityGoal: {
		"name":          text(100, true),
		"description":   text(500, false),
		"target_amount": positiveAmount,
		"target_date":   calendarDate,
		"priority":      intRange(1, 5),
	},
	EntityRecurring: {
		"name":           text(100, true),
		"amount":         positiveAmount,
		"category_id":    optionalID,
		"payment_method": text(50, true),
		"end_date":       calendarDate,
		"balance":        nonNegativeAmount,
		"is_active":      boolean,
	},
}

// ParsePatch validates caller supplied updates against the entity's allow-list.
// Every rejected field is reported; an empty input is an error.
func ParsePatch(entity Entity, input map[string]any) (Patch, error) {
	fields, ok := mutableFields[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	if len(input) == 0 {
		return nil, NewValidationError("", "no fields to update")
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs ValidationErrors
	patch := make(Patch, 0, len(keys))
	for _, k := range keys {
		parse, allowed := fields[k]
		if !allowed {
			errs.Add(NewValidationError(k, "field cannot be updated"))
			continue
		}
		v, err := parse(input[k])
		if err != nil {
			errs.Add(NewValidationError(k, err.Error()))
			continue
		}
		patch = append(patch, FieldUpdate{Column: k, Value: v})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return patch, nil
}

// MutableFields lists the allow-listed columns of an entity in sorted order.
func MutableFields(entity Entity) []string {
	out := make([]string, 0, len(mutableFields[entity]))
	for k := range mutableFields[entity] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func positiveAmount(v any) (any, error) {
	d, err := AmountFromAny(v)
	if err != nil {
		return nil, fmt.Errorf("must be a positive amount")
	}
	return d, nil
}

func nonNegativeAmount(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if x == 0 {
			return decimal.Zero, nil
		}
	case string:
		if strings.TrimSpace(x) == "0" {
			return decimal.Zero, nil
		}
	}
	return positiveAmount(v)
}

func transactionKind(v any) (any, error) {
	s, ok := v.(string)
	if !ok || !TransactionKind(s).IsValid() {
		return nil, fmt.Errorf("must be 'income' or 'expense'")
	}
	return TransactionKind(s), nil
}

func optionalID(v any) (any, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("must be a string")
	}
	return strings.TrimSpace(s), nil
}

func text(max int, required bool) fieldParser {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		s = strings.TrimSpace(s)
		if required && s == "" {
			return nil, fmt.Errorf("cannot be empty")
		}
		if len(s) > max {
			return nil, fmt.Errorf("too long (max %d characters)", max)
		}
		return s, nil
	}
}

func calendarDate(v any) (any, error) {
	switch x := v.(type) {
	case Date:
		if x.IsZero() {
			return nil, ErrInvalidDate
		}
		return x, nil
	case string:
		return ParseDate(x)
	default:
		return nil, ErrInvalidDate
	}
}

func boolean(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("must be a boolean")
	}
	return b, nil
}

func intRange(min, max int) fieldParser {
	return func(v any) (any, error) {
		var n int
		switch x := v.(type) {
		case int:
			n = x
		case float64:
			if x != float64(int(x)) {
				return nil, fmt.Errorf("must be a whole number")
			}
			n = int(x)
		default:
			return nil, fmt.Errorf("must be a number")
		}
		if n < min || n > max {
			return nil, fmt.Errorf("must be between %d and %d", min, max)
		}
		return n, nil
	}
}
