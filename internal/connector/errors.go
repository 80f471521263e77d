package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the transport rejects our credentials
	// or denies access to a team.
	ErrUnauthorized = errors.New("unauthorized access")
	ErrNotFound     = errors.New("not found")
)

// TransportError is a failed call to the messaging backend. Callers may
// retry; the connector never does.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("connector %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("connector %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is an access failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
