// Package apperr holds the error taxonomy shared by the store, the
// serialization layer and the metrics aggregator.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrValidation          = errors.New("validation error")
	ErrAggregationFailure  = errors.New("aggregation failure")
)

// NotFoundError reports a missing row or a dangling reference.
type NotFoundError struct {
	Entity string
	ID     uint
}

func NotFound(entity string, id uint) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConstraintError reports a uniqueness, foreign-key, state or range breach
// detected by the store.
type ConstraintError struct {
	Constraint string
	Message    string
}

func Constraint(constraint, format string, args ...any) error {
	return &ConstraintError{Constraint: constraint, Message: fmt.Sprintf(format, args...)}
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s violated: %s", e.Constraint, e.Message)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraintViolation }

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// ValidationError reports malformed input at the serialization boundary.
type ValidationError struct {
	Fields FieldErrors
}

func Validation(fields FieldErrors) error {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AggregationError is a per-user recompute failure. It is retryable and never
// aborts a run.
type AggregationError struct {
	UserID uint
	Err    error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregate user %d: %v", e.UserID, e.Err)
}

func (e *AggregationError) Is(target error) bool {
	return target == ErrAggregationFailure
}

func (e *AggregationError) Unwrap() error { return e.Err }
