package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation error")
)

// TransitionError explains why a transition was refused.
type TransitionError struct {
	OrderID  string
	Action   Action
	Current  OrderStatus
	Required []OrderStatus
	Role     Role
	Reason   string
}

func (e *TransitionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot %s order %s", e.Action, e.OrderID)
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
		return b.String()
	}
	fmt.Fprintf(&b, ": status is %s", e.Current)
	if len(e.Required) > 0 {
		names := make([]string, len(e.Required))
		for i, s := range e.Required {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, ", requires %s", strings.Join(names, " or "))
	}
	return b.String()
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
