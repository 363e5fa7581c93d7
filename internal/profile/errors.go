package profile

import (
	"errors"
	"strings"

	"studentportal/internal/editlock"
	"studentportal/internal/gateway"
)

var (
	ErrMissingPhoto   = errors.New("missing photo")
	ErrSubmitInFlight = errors.New("a submission is already in progress")
	ErrClosed         = errors.New("workspace closed")
	ErrNameSlot       = errors.New("no such name field")
)

// Error-store fields.
const (
	FieldPhoto = "photo"
	FieldForm  = "form"
)

const genericSaveFailure = "Failed to save your data. Please try again."

// Failure is one invalid field.
type Failure struct {
	Field   string `json:"field"`
	Kind    error  `json:"-"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed local validation. It never
// reaches the network.
type ValidationError struct {
	Failures []Failure
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		fields = append(fields, f.Field+": "+f.Kind.Error())
	}
	return "validation failed: " + strings.Join(fields, "; ")
}

// Unwrap exposes every failure kind to errors.Is.
func (e *ValidationError) Unwrap() []error {
	kinds := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

// Fields maps each failed field to its message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.Failures))
	for _, f := range e.Failures {
		out[f.Field] = f.Message
	}
	return out
}

// IsLockViolation reports whether err is a mutation rejected by the edit lock.
func IsLockViolation(err error) bool {
	return errors.Is(err, editlock.ErrLocked)
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	var verr *ValidationError
	var lerr *editlock.Violation
	var gerr *gateway.Error
	switch {
	case errors.As(err, &verr) && len(verr.Failures) > 0:
		return verr.Failures[0].Message
	case errors.As(err, &lerr):
		return lerr.Message
	case errors.As(err, &gerr):
		if gerr.Message != "" {
			return gerr.Message
		}
		return genericSaveFailure
	case errors.Is(err, ErrSubmitInFlight):
		return "Your data is being saved, please wait."
	}
	return genericSaveFailure
}
