// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates user-correctable bad input. Wrap it with the
// specific message; handlers surface the message with a 400.
var ErrValidation = errors.New("validation failed")

// ErrPreconditionNotMet indicates an action was attempted before its
// prerequisites were satisfied (e.g. finalizing before all scorers submitted).
var ErrPreconditionNotMet = errors.New("precondition not met")

// ErrInvalidTransition indicates an action is not permitted from the
// requisition's or award target's current status.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrUnauthorized indicates the caller is not permitted to perform the action.
var ErrUnauthorized = errors.New("unauthorized")
