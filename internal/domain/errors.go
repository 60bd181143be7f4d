package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies per-action failures.
type ErrorKind string

const (
	ErrValidationRejectedKind ErrorKind = "validation_rejected"
	ErrElevationDenied        ErrorKind = "elevation_denied"
	ErrElevationFailed        ErrorKind = "elevation_failed"
	ErrElementNotFound        ErrorKind = "element_not_found"
	ErrActionTimeout          ErrorKind = "action_timeout"
	ErrActionRuntime          ErrorKind = "action_runtime_error"
)

// Plan-scoped failures.
var (
	ErrValidationRejected = errors.New("plan rejected by validation")
	ErrNotApproved        = errors.New("plan not approved")
	ErrPlanInFlight       = errors.New("another plan is already executing")
	ErrEmptyPlan          = errors.New("plan contains no actions")
	ErrDesktopUnavailable = errors.New("desktop automation is unavailable on this platform")
	ErrNotFound           = errors.New("not found")
)

// ActionError is the structured failure attached to an error result.
type ActionError struct {
	Kind      ErrorKind
	Action    string
	Message   string
	Attempts  []LayerAttempt
	Retryable bool
	Err       error
}

// Error implements error.
func (e *ActionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Action != "" {
		fmt.Fprintf(&b, " [%s]", e.Action)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.Attempts) > 0 {
		parts := make([]string, 0, len(e.Attempts))
		for _, attempt := range e.Attempts {
			parts = append(parts, fmt.Sprintf("%s=%s", attempt.Layer, attempt.Outcome))
		}
		fmt.Fprintf(&b, " (layers: %s)", strings.Join(parts, ", "))
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *ActionError) Unwrap() error {
	return e.Err
}

// NewActionError builds an ActionError wrapping cause.
func NewActionError(kind ErrorKind, action string, cause error) *ActionError {
	e := &ActionError{Kind: kind, Action: action, Err: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// ErrorKindOf returns the kind carried by err, if any.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// RejectionError is returned when validation rejects a plan.
type RejectionError struct {
	Verdict ValidationVerdict
}

func (e *RejectionError) Error() string {
	if e.Verdict.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrValidationRejected, e.Verdict.Reason)
	}
	return ErrValidationRejected.Error()
}

func (e *RejectionError) Unwrap() error {
	return ErrValidationRejected
}
