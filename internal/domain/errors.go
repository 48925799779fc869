// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking
// or a violated uniqueness constraint).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed caller input. Never retried.
var ErrValidation = errors.New("validation failed")

// ErrStateConflict indicates an operation that is illegal in the entity's
// current lifecycle state (bad transition, double join, round at capacity).
var ErrStateConflict = errors.New("state conflict")

// ErrUnauthorized indicates a failed role or ownership check. Handlers must
// surface it without revealing whether the resource exists.
var ErrUnauthorized = errors.New("unauthorized")

// ErrCodeSpaceExhausted indicates invite code allocation ran out of retry
// attempts. Surfaced to callers as a retryable server error.
var ErrCodeSpaceExhausted = errors.New("invite code space exhausted")
