package cloudapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is a class of failure reported to API clients as an error `code`.
type Kind string

const (
	InvalidFilter       Kind = "InvalidFilter"
	InvalidToken        Kind = "InvalidToken"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	NotImplemented      Kind = "NotImplemented"
	NotAcceptable       Kind = "NotAcceptable"
	InternalError       Kind = "InternalError"
)

// Status returns HTTP status code used to report errors of the kind.
func (k Kind) Status() int {
	switch k {
	case InvalidFilter, InvalidToken:
		return http.StatusBadRequest
	case UpstreamUnavailable:
		return http.StatusServiceUnavailable
	case NotImplemented:
		return http.StatusNotImplemented
	case NotAcceptable:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error that can be reported to API clients.
type Error struct {
	Kind    Kind
	Message string

	// Err is the cause, never shown to clients
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, &Error{Kind: k}) match any error of kind k.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// NewError creates a new API error of a kind.
func NewError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// KindOf returns the kind of err, [InternalError] for errors not raised by this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	var fieldErrs FieldErrors
	if errors.As(err, &fieldErrs) {
		return InvalidFilter
	}

	return InternalError
}

// FieldError is a problem with a single query parameter.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldErrors collects every offending query parameter in a request.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "<empty FieldErrors>"
	}

	s := make([]string, 0, len(e))
	for _, er := range e {
		s = append(s, er.Error())
	}

	return strings.Join(s, "; ")
}

// Fields returns names of offending fields.
func (e FieldErrors) Fields() []string {
	result := make([]string, 0, len(e))
	for _, er := range e {
		result = append(result, er.Field)
	}
	return result
}

func (e *FieldErrors) add(field, format string, args ...any) {
	*e = append(*e, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// AsFieldErrorsOrNil joins field errors, returning nil if there are none.
func AsFieldErrorsOrNil(errs ...FieldErrors) error {
	var result FieldErrors
	for _, e := range errs {
		result = append(result, e...)
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
