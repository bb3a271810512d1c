// Package common defines shared constants and sentinel errors used across
// the client and server layers of cardkeeper. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Mutation API errors (invalid local input, rejected before any I/O).
	ErrValidation    = errors.New("validation error")
	ErrAlreadyExists = errors.New("already exists")

	// Sync cycle errors. ErrSync covers network failures, timeouts and
	// non-2xx responses; it aborts the current cycle only and never
	// discards pending local mutations.
	ErrSync           = errors.New("sync failed")
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrConflict marks a server-reported semantic conflict on a pushed
	// record. Non-fatal: the record stays dirty for a manual follow-up.
	ErrConflict = errors.New("sync conflict")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
)
