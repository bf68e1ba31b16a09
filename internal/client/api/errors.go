package api

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable        = errors.New("server unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("not found")
	ErrNoDataset          = errors.New("no dataset uploaded")
	ErrInvalidToken       = errors.New("login response carried no token")
)

// StatusError is an unexpected HTTP status with the server's explanation,
// when it sent one.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}
