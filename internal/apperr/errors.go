// Package apperr defines the error kinds shared across docdesk.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrTransport = errors.New("transport failure")
	ErrDecode    = errors.New("invalid response body")
	ErrStatus    = errors.New("unexpected status")
	ErrInvalid   = errors.New("invalid input")
)

// StatusError is returned when the document service answers with a
// non-success HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrStatus.
func (e *StatusError) Unwrap() error {
	return ErrStatus
}
