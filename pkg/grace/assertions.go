package grace

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Error represents actionable error interface.
type Error interface {
	error

	// Name of a setting or a resource the error is about
	Subject() string

	// Text message to show to users of what was expected to happen
	WhatExpected() string

	// Text message to show to users of what actually happened
	WhatHappened() string

	// Text message with Call To Action - what a user can be doing to resolve the error
	WhatToDo() string
}

// ActionableError simple implementation of actionable Error interface
type ActionableError struct {
	subject      string
	expected     string
	got          string
	callToAction string
}

func (e *ActionableError) Subject() string {
	return e.subject
}

func (e *ActionableError) WhatExpected() string {
	return e.expected
}

func (e *ActionableError) WhatHappened() string {
	return e.got
}

func (e *ActionableError) WhatToDo() string {
	return e.callToAction
}

// Error method is an implementation of the standard `error` interface
func (e *ActionableError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s; what to do: %s", e.subject, e.expected, e.got, e.callToAction)
}

// MarshalLogObject lets zap log the error as a structured object.
func (e *ActionableError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("subject", e.subject)
	enc.AddString("expected", e.expected)
	enc.AddString("got", e.got)
	enc.AddString("what_to_do", e.callToAction)
	return nil
}

// RaiseError creates an instance of an actionable error `ActionableError`
func RaiseError(
	subject, expected, got, cta string,
) Error {
	return &ActionableError{
		subject:      subject,
		expected:     expected,
		got:          got,
		callToAction: cta,
	}
}

// Fields returns zap fields describing err. Actionable errors found in err tree are logged as objects.
func Fields(err error) []zap.Field {
	var actionable []zapcore.ObjectMarshaler
	collectActionable(err, &actionable)
	if len(actionable) == 0 {
		return []zap.Field{zap.Error(err)}
	}

	result := make([]zap.Field, 0, len(actionable))
	for i, a := range actionable {
		result = append(result, zap.Object(fmt.Sprintf("problem_%d", i+1), a))
	}
	return result
}

func collectActionable(err error, result *[]zapcore.ObjectMarshaler) {
	switch e := err.(type) {
	case nil:
	case *ActionableError:
		*result = append(*result, e)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectActionable(inner, result)
		}
	case interface{ Unwrap() error }:
		collectActionable(e.Unwrap(), result)
	}
}
