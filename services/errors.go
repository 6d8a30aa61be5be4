package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrAlreadyInProgress    = errors.New("an attempt is already in progress")
	ErrOutsideWindow        = errors.New("test is outside its availability window")
	ErrAttemptClosed        = errors.New("attempt is closed")
	ErrValidation           = errors.New("validation failed")
	ErrDataIntegrity        = errors.New("data integrity warning")
)

// AttemptError carries one of the error kinds above plus the ids needed to render a message.
type AttemptError struct {
	Kind      error
	AttemptID uuid.UUID
	TestID    uuid.UUID
	Detail    string
	Err       error
}

func (e *AttemptError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.AttemptID != uuid.Nil {
		msg += fmt.Sprintf(" (attempt %s)", e.AttemptID)
	} else if e.TestID != uuid.Nil {
		msg += fmt.Sprintf(" (test %s)", e.TestID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AttemptError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, testID, attemptID uuid.UUID, detail string) *AttemptError {
	return &AttemptError{Kind: kind, TestID: testID, AttemptID: attemptID, Detail: detail}
}

func validationError(testID uuid.UUID, format string, args ...any) *AttemptError {
	return newError(ErrValidation, testID, uuid.Nil, fmt.Sprintf(format, args...))
}
