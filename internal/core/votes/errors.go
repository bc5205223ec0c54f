package votes

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrVoteNotFound indicates the requested vote doesn't exist
	ErrVoteNotFound = errors.New("vote not found")

	// ErrUnauthenticated indicates an identity-required operation was called without a user ID
	ErrUnauthenticated = errors.New("unauthenticated: user id is required")

	// ErrInvalidDirection indicates the vote direction is not "up" or "down"
	ErrInvalidDirection = errors.New("invalid vote direction: must be 'up' or 'down'")

	// ErrInvalidItemKind indicates the item kind is not "comment" or "wish"
	ErrInvalidItemKind = errors.New("invalid item kind: must be 'comment' or 'wish'")

	// ErrCircuitOpen indicates storage calls are being short-circuited after repeated
	// connectivity failures
	ErrCircuitOpen = errors.New("storage circuit breaker is open")
)

// StorageError wraps any failure coming from the storage layer.
// The underlying cause is preserved for errors.Is / errors.As.
type StorageError struct {
	Err error
	Op  string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether the failure means storage is unreachable
// rather than a rejected statement.
func (e *StorageError) IsConnectivity() bool {
	return IsConnectivityError(e.Err)
}

// NewStorageError wraps err for the named operation. A nil err stays nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err carries a StorageError anywhere in its chain
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// connectivityClassifier lets driver packages teach IsConnectivityError about their
// own error types without this package importing them.
type connectivityClassifier interface {
	Connectivity() bool
}

// IsConnectivityError reports whether err looks like lost or refused connectivity
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var cc connectivityClassifier
	if errors.As(err, &cc) {
		return cc.Connectivity()
	}
	// A dial or socket failure is always connectivity
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// context.DeadlineExceeded satisfies net.Error too, but on its own it only
	// means the caller's bound ran out, e.g. while queued for a pooled connection
	var netErr net.Error
	return errors.As(err, &netErr) && !errors.Is(err, context.DeadlineExceeded)
}
