package light

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the light package.
//
//	if errors.Is(err, light.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrNotFound is returned when a light id does not exist.
	ErrNotFound = errors.New("light: not found")

	// ErrConflict is returned when an id or pos is already taken.
	ErrConflict = errors.New("light: already exists")

	// ErrNotConnected is returned when the broker or the device is unreachable.
	ErrNotConnected = errors.New("light: not connected")

	// ErrInvalidArgument is returned for a missing or malformed id.
	ErrInvalidArgument = errors.New("light: invalid argument")

	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("light: validation failed")

	// ErrCommandTimeout is returned in ack mode when the device does not echo the command in time.
	ErrCommandTimeout = errors.New("light: command not acknowledged")
)

// Violation describes one failed field constraint.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError carries every violated constraint of a payload or input.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// validationError returns nil for an empty list.
func validationError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}
