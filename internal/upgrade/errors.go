package upgrade

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies upgrade failures into the stable set of kinds the
// command layer reports.
type ErrorKind string

const (
	// KindUnknownMethod means the install method could not be determined.
	KindUnknownMethod ErrorKind = "unknown_method"

	// KindVersionNotFound means a requested version does not exist remotely.
	KindVersionNotFound ErrorKind = "version_not_found"

	// KindUnsupportedOperation means the operation is not supported for the
	// detected install method.
	KindUnsupportedOperation ErrorKind = "unsupported_operation"

	// KindNetworkError means a registry or download request failed.
	KindNetworkError ErrorKind = "network_error"

	// KindExecutionFailed means a subprocess or filesystem step failed.
	KindExecutionFailed ErrorKind = "execution_failed"
)

// Error is a typed upgrade failure with an optional remedy for the user.
type Error struct {
	Kind    ErrorKind
	Message string
	Remedy  string
	cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a typed upgrade error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a typed upgrade error around a cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithRemedy attaches remedy text and returns the same error.
func (e *Error) WithRemedy(format string, args ...any) *Error {
	e.Remedy = fmt.Sprintf(format, args...)

	return e
}

// KindOf returns the kind of a typed upgrade error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var upgradeErr *Error
	if errors.As(err, &upgradeErr) {
		return upgradeErr.Kind
	}

	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// normalizeNetwork maps transport faults to KindNetworkError. An explicit
// cancellation propagates untouched so callers can tell it apart from a
// genuine network fault.
func normalizeNetwork(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	return WrapError(KindNetworkError, err, format, args...)
}
