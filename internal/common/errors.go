// Package common defines shared constants and sentinel errors used across
// client and server layers of farmsync. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Store-level errors.
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")

	// Sync errors.
	ErrTransport        = errors.New("transport error")
	ErrConflictObserved = errors.New("conflict observed")

	// Service-level errors.
	ErrInternal      = errors.New("internal error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnavailable   = errors.New("server unavailable")
	ErrAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TransportError describes a failed exchange with the remote service.
// Records involved in the exchange keep their dirty state.
type TransportError struct {
	Op    string
	Table string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ConflictObserved reports that a locally dirty record met a remote version
// of the same record during a pull. It is informational.
type ConflictObserved struct {
	Table        string
	ID           string
	LocalMillis  int64
	RemoteMillis int64
	RemoteWon    bool
}

func (c *ConflictObserved) Error() string {
	winner := "local"
	if c.RemoteWon {
		winner = "remote"
	}
	return fmt.Sprintf("conflict on %s/%s: local=%d remote=%d, %s kept", c.Table, c.ID, c.LocalMillis, c.RemoteMillis, winner)
}

func (c *ConflictObserved) Is(target error) bool { return target == ErrConflictObserved }
