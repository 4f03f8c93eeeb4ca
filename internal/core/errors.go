package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// ValidationError reports a single rejected input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var ves *ValidationErrors
	return errors.As(err, &ves)
}

// ValidationErrors aggregates every problem found in one input.
type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(msgs, "; "))
}

func (ve *ValidationErrors) Add(err error) {
	ve.Errors = append(ve.Errors, err)
}

// Err returns nil when nothing was collected, the lone error when one was, and the
// aggregate otherwise.
func (ve *ValidationErrors) Err() error {
	switch len(ve.Errors) {
	case 0:
		return nil
	case 1:
		return ve.Errors[0]
	default:
		return ve
	}
}

// fromValidator converts go-playground field errors into ValidationErrors.
func fromValidator(err error, into *ValidationErrors) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		into.Add(NewValidationError("", err.Error()))
		return
	}
	for _, fe := range fieldErrs {
		msg := fmt.Sprintf("failed '%s' check", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed '%s=%s' check", fe.Tag(), fe.Param())
		}
		into.Add(NewValidationError(fe.Field(), msg))
	}
}
