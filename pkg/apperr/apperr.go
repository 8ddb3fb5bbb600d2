// Package apperr defines the error taxonomy shared by the pack-change
// workflow. Handlers map these kinds to API response codes; services
// wrap underlying causes with %w so errors.Is keeps working.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication   Kind = "authentication"
	KindNotFound         Kind = "not_found"
	KindExternalProvider Kind = "external_provider"
	KindConflict         Kind = "conflict"
	KindConfiguration    Kind = "configuration"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Authentication(format string, args ...any) *Error {
	return New(KindAuthentication, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func ExternalProvider(cause error, format string, args ...any) *Error {
	return Wrap(KindExternalProvider, cause, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

// KindOf reports the taxonomy kind of err, or "" when err is not an
// *Error anywhere in its chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
