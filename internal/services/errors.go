package services

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrTransient marks failures a later batch may resolve on its own.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures that will not resolve by retrying.
	ErrPermanent = errors.New("permanent failure")
	// ErrValidation marks content rejected by policy. Permanent.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable settings. Permanent.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternal marks a failing external service. Transient.
	ErrExternal = errors.New("external service error")
	// ErrTimeout marks a capability call that overran its deadline. Transient.
	ErrTimeout = errors.New("timeout")
)

var markers = []error{ErrTransient, ErrPermanent, ErrValidation, ErrConfiguration, ErrExternal, ErrTimeout}

// IsClassified reports whether err already carries one of the markers above.
func IsClassified(err error) bool {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

// Error carries the stage context of a classified failure.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return e.Marker.Error() + ": " + detail + ": " + e.Cause.Error()
	}
	return e.Marker.Error() + ": " + detail
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Marker, e.Cause}
	}
	return []error{e.Marker}
}

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// IsPermanent reports whether err should divert an item into the failed lane.
// Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrPermanent) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConfiguration)
}

// Reason returns the operator-facing explanation for err: the Wrap message
// (plus cause) when available, the raw error text otherwise.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		parts := make([]string, 0, 2)
		if se.Message != "" {
			parts = append(parts, se.Message)
		}
		if se.Cause != nil {
			parts = append(parts, se.Cause.Error())
		}
		if len(parts) > 0 {
			return strings.Join(parts, ": ")
		}
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
