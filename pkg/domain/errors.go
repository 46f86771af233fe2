package domain

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned when no cancellation record exists for the
// requested key. Absence is reported as absence; a variant is never invented.
var ErrRecordNotFound = errors.New("cancellation record not found")

// ErrSubscriptionNotFound is returned by offer updates when no subscription
// matches the (subscriptionID, userID) pair.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrNoUniqueConstraint is reported by a store whose schema is missing the
// expected uniqueness constraint on (user_id, subscription_id). The gateway
// reacts by falling back to a plain insert and logging a migration warning.
var ErrNoUniqueConstraint = errors.New("missing unique constraint on (user_id, subscription_id)")

// ErrCommitInFlight is returned when a commit is attempted while a previous
// one for the same session has not resolved yet.
var ErrCommitInFlight = errors.New("commit already in flight")

// ConfigurationError signals a dangling reference in the step graph (a
// button or branch target that resolves to no step). It is a defensive
// guard: navigation degrades to a no-op instead of crashing.
type ConfigurationError struct {
	StepID string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("step %q: %s", e.StepID, e.Detail)
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Key    string // question id or composite key
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}

// AggregateError collects multiple validation or configuration failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}
