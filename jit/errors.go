package jit

import (
	"errors"
	"time"
)

var (
	// ErrInvalidRequest is returned for malformed access requests.
	ErrInvalidRequest = errors.New("jit: invalid access request")
	// ErrDurationExceeded is returned when a requested duration is above the
	// configured cap.
	ErrDurationExceeded = errors.New("jit: requested duration exceeds maximum")
	// ErrAlreadyActive is matched by [*ActiveAccessError].
	ErrAlreadyActive = errors.New("jit: access already active")
	// ErrAlreadyPending is matched by [*PendingRequestError].
	ErrAlreadyPending = errors.New("jit: access request already pending")
	// ErrPolicyDenied is returned when the access policy rejects a request.
	ErrPolicyDenied = errors.New("jit: access request denied by policy")
	// ErrNotAdmin is returned when a non-admin approves, rejects or lists requests.
	ErrNotAdmin = errors.New("jit: admin role required")
	// ErrRevokeForbidden is returned when a requester is neither the grant
	// owner nor an admin.
	ErrRevokeForbidden = errors.New("jit: not permitted to revoke grant")
	// ErrGrantNotFound is returned for unknown grant ids.
	ErrGrantNotFound = errors.New("jit: grant not found")
	// ErrNotPending is returned when approving a grant that is not PENDING.
	ErrNotPending = errors.New("jit: grant not pending")
)

// ActiveAccessError reports that the requester already holds an active grant
// for the resource.
type ActiveAccessError struct {
	Grant Grant
}

func (e *ActiveAccessError) Error() string {
	return "jit: access already active until " + e.Grant.ExpiresAt.UTC().Format(time.RFC3339)
}

func (e *ActiveAccessError) Is(target error) bool {
	return target == ErrAlreadyActive
}

// PendingRequestError reports that the requester's latest request for the
// resource is still awaiting a decision.
type PendingRequestError struct {
	Grant Grant
}

func (e *PendingRequestError) Error() string {
	return "jit: access request " + e.Grant.ID + " already pending"
}

func (e *PendingRequestError) Is(target error) bool {
	return target == ErrAlreadyPending
}
