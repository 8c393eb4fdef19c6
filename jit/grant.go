package jit

import (
	"context"
	"time"
)

// Status is the approval state of a grant. Revocation is tracked separately
// by [Grant.Revoked] and overrides any status.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Grant is a temporary, explicitly approved access grant to one resource.
//
// GrantedAt and ExpiresAt are zero until the grant is approved.
type Grant struct {
	ID              string
	UserID          string
	ResourceID      string
	ResourceType    string
	Reason          string
	DurationMinutes int
	Status          Status
	Revoked         bool
	RequestedAt     time.Time
	GrantedAt       time.Time
	ExpiresAt       time.Time
}

// IsActive reports whether g currently grants access: approved, not revoked,
// and now is strictly before its expiry.
func IsActive(g Grant, now time.Time) bool {
	return !g.Revoked &&
		g.Status == StatusApproved &&
		!g.ExpiresAt.IsZero() &&
		now.Before(g.ExpiresAt)
}

// IsExpired reports whether g has an expiry and now has reached it. It is
// independent of whether the sweeper has run.
func IsExpired(g Grant, now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt)
}

// Store persists grants. Every mutating method is a single atomic
// read-modify-write in the backing store.
type Store interface {
	CreateGrant(ctx context.Context, g Grant) error
	// Grant returns store.ErrNotFound for unknown ids.
	Grant(ctx context.Context, id string) (Grant, error)
	// LatestGrant returns the most recently requested non-revoked grant for
	// (userID, resourceID), or store.ErrNotFound.
	LatestGrant(ctx context.Context, userID, resourceID string) (Grant, error)
	// UserGrants returns the user's non-revoked grants, newest first.
	UserGrants(ctx context.Context, userID string) ([]Grant, error)
	// PendingGrants returns non-revoked PENDING grants, oldest first.
	PendingGrants(ctx context.Context) ([]Grant, error)
	// ApproveGrant moves a non-revoked PENDING grant to APPROVED, setting
	// GrantedAt to at and ExpiresAt to at plus the grant duration. It
	// returns ErrNotPending when the grant exists in any other state.
	ApproveGrant(ctx context.Context, id string, at time.Time) (Grant, error)
	// RejectGrant sets the status to REJECTED unconditionally.
	RejectGrant(ctx context.Context, id string) (Grant, error)
	// RevokeGrant sets Revoked unconditionally.
	RevokeGrant(ctx context.Context, id string) (Grant, error)
	// RevokeExpired revokes every non-revoked grant whose expiry is at or
	// before now and returns how many were changed.
	RevokeExpired(ctx context.Context, now time.Time) (int, error)
	CountGrants(ctx context.Context) (int, error)
}
