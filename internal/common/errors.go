// Package common defines shared constants and sentinel errors used across
// client and server layers of doorsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound        = errors.New("not found")
	ErrSnapshotExpired = errors.New("snapshot expired")

	// Client queue errors. ErrQueueFull means the local store refused the
	// write; the action was not persisted and must be surfaced to staff.
	ErrQueueFull = errors.New("local queue storage exhausted")

	// Transport-level errors.
	ErrRetryable    = errors.New("retryable transport error")
	ErrUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed staff token).
	ErrInvalidToken = errors.New("invalid token")

	// Validation errors (malformed action, missing required field).
	ErrValidation = errors.New("validation error")
)
