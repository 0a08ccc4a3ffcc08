package booking

import (
	"errors"
	"fmt"
)

// ErrBookingNotFound is returned when no booking flow exists for the id.
var ErrBookingNotFound = errors.New("booking not found")

// FlowError carries a stable code alongside the message so route handlers
// can map failures without string matching.
type FlowError struct {
	Code    string
	Message string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewFlowError(code, msg string) error {
	return &FlowError{Code: code, Message: msg}
}
