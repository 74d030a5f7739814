package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated: missing or invalid bearer credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound: session absent, or not owned by the caller.
	ErrNotFound = errors.New("session not found")
	// ErrCompletionFailed: the upstream completion provider failed.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrStoreUnavailable: the underlying database operation failed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidInput: the caller sent a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidRecord: a stored record does not have the expected shape.
	ErrInvalidRecord = errors.New("invalid record")
)

// Unavailable wraps a backend failure so it matches ErrStoreUnavailable
// while keeping the original cause in the chain.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
