package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Policy violations: expected, recoverable, returned as named results so the
// caller can distinguish "you already did this" from a real failure.
var (
	ErrAlreadyAssigned  = fmt.Errorf("member already holds an allocation")
	ErrDrawInProgress   = fmt.Errorf("a draw is already in progress for this member")
	ErrMemberSuspended  = fmt.Errorf("member is suspended")
	ErrNotAllocated     = fmt.Errorf("member has no allocation in this pool")
	ErrDuplicatePayment = fmt.Errorf("contribution already recorded for this slot")
)

// ErrDrawExpired is a transient outcome: the drawing lock lapsed before the
// commit. The caller resolves it by re-querying current state, never by
// blind retry.
var ErrDrawExpired = fmt.Errorf("draw lock expired before commit")

// Resource exhaustion: recoverable by waiting for pool reconfiguration.
var ErrNoSlotsAvailable = fmt.Errorf("no slots available")

// Registry guards. Not expected in normal operation; hitting one means a
// caller bypassed the allocation engine.
var (
	ErrAlreadyOccupied = fmt.Errorf("slot is already occupied")
	ErrSlotNotActive   = fmt.Errorf("slot is not active")
	ErrSlotNotFound    = fmt.Errorf("slot not found")
)

// Account and session errors.
var (
	ErrMemberNotFound      = fmt.Errorf("member not found")
	ErrMemberAlreadyExists = fmt.Errorf("codename already taken")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration     = fmt.Errorf("token generation failed")
	ErrUnauthorized        = fmt.Errorf("unauthorized")
	ErrForbidden           = fmt.Errorf("admin role required")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")

// Is and As re-export the stdlib helpers so callers matching sentinels
// never need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// MapToHTTPStatus translates domain errors into HTTP status codes at the
// gateway boundary. Unknown errors fall through to 500 so transient faults
// surface as "unknown outcome" and callers re-query instead of retrying
// the mutation blindly.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrMemberSuspended):
		return http.StatusForbidden
	case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrMemberNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrDrawInProgress),
		errors.Is(err, ErrDrawExpired),
		errors.Is(err, ErrDuplicatePayment),
		errors.Is(err, ErrAlreadyOccupied),
		errors.Is(err, ErrMemberAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrNoSlotsAvailable):
		return http.StatusGone
	case errors.Is(err, ErrNotAllocated),
		errors.Is(err, ErrSlotNotActive),
		errors.Is(err, ErrInvalidPassword):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the stable machine-readable name for a domain error, used in
// gateway responses so the UI can tell apart "already did this" cases.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, ErrDrawInProgress):
		return "draw_in_progress"
	case errors.Is(err, ErrDrawExpired):
		return "draw_expired"
	case errors.Is(err, ErrMemberSuspended):
		return "member_suspended"
	case errors.Is(err, ErrNotAllocated):
		return "not_allocated"
	case errors.Is(err, ErrDuplicatePayment):
		return "duplicate_payment"
	case errors.Is(err, ErrNoSlotsAvailable):
		return "no_slots_available"
	case errors.Is(err, ErrAlreadyOccupied):
		return "already_occupied"
	case errors.Is(err, ErrSlotNotActive):
		return "slot_not_active"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrMemberNotFound):
		return "member_not_found"
	case errors.Is(err, ErrMemberAlreadyExists):
		return "codename_taken"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrInvalidPassword):
		return "weak_password"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
