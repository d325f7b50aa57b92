package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError is the error type produced by the builders below. It carries
// a developer message, an optional user-facing hint and reportable details
// that are safe to surface in API responses.
type InternalError struct {
	cause             error
	message           string
	hint              string
	reportableDetails map[string]any
	mark              error
}

func (e *InternalError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *InternalError) Unwrap() error {
	if e.mark != nil {
		return e.mark
	}
	return e.cause
}

// Cause returns the wrapped error, if any.
func (e *InternalError) Cause() error {
	return e.cause
}

// Hint returns the user-facing hint, falling back to the message.
func (e *InternalError) Hint() string {
	if e.hint != "" {
		return e.hint
	}
	return e.message
}

// ReportableDetails returns details safe to include in API responses.
func (e *InternalError) ReportableDetails() map[string]any {
	return e.reportableDetails
}

// Is lets the mark participate in errors.Is chains alongside the cause.
func (e *InternalError) Is(target error) bool {
	if e.mark != nil && errors.Is(e.mark, target) {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// ErrorBuilder provides a fluent API for constructing InternalError values.
type ErrorBuilder struct {
	err *InternalError
}

// NewError starts a builder with the given developer message.
func NewError(message string) *ErrorBuilder {
	return &ErrorBuilder{err: &InternalError{message: message}}
}

// NewErrorf starts a builder with a formatted developer message.
func NewErrorf(format string, args ...any) *ErrorBuilder {
	return NewError(fmt.Sprintf(format, args...))
}

// WithError starts a builder wrapping an existing error.
func WithError(err error) *ErrorBuilder {
	if err == nil {
		return NewError("unknown error")
	}
	return &ErrorBuilder{err: &InternalError{cause: err, message: err.Error()}}
}

// WithHint sets the user-facing hint.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err.hint = hint
	return b
}

// WithHintf sets a formatted user-facing hint.
func (b *ErrorBuilder) WithHintf(format string, args ...any) *ErrorBuilder {
	b.err.hint = fmt.Sprintf(format, args...)
	return b
}

// WithReportableDetails attaches details that may be returned to API callers.
func (b *ErrorBuilder) WithReportableDetails(details map[string]any) *ErrorBuilder {
	b.err.reportableDetails = details
	return b
}

// WithMessage overrides the developer message.
func (b *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	b.err.message = message
	return b
}

// Mark finalizes the builder, tagging the error with one of the sentinels.
func (b *ErrorBuilder) Mark(sentinel error) error {
	b.err.mark = sentinel
	return b.err
}
