package jit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goAccess/permission"
	"github.com/MrEthical07/goAccess/store"
	"github.com/juju/clock"
)

const (
	// DefaultDurationMinutes is used when a request names no duration.
	DefaultDurationMinutes = 15
	// DefaultSweepInterval is the cadence of the expiry sweeper.
	DefaultSweepInterval = 5 * time.Minute
)

// RoleChecker is the slice of the authorization engine the workflow needs.
type RoleChecker interface {
	// RequireRole returns nil when the subject holds role, an error wrapping
	// permission.ErrDenied when it does not, and any storage error as is.
	RequireRole(ctx context.Context, subjectID, role string) error
	HasOrganizationalLevel(ctx context.Context, subjectID string, required permission.OrgLevel) (bool, error)
}

// Request describes an access request.
type Request struct {
	UserID          string
	ResourceID      string
	ResourceType    string
	Reason          string
	DurationMinutes int
}

// Policy decides whether a request may enter the approval queue.
type Policy func(ctx context.Context, roles RoleChecker, req Request) (bool, error)

// DefaultPolicy admits any subject holding at least the USER level.
func DefaultPolicy(ctx context.Context, roles RoleChecker, req Request) (bool, error) {
	return roles.HasOrganizationalLevel(ctx, req.UserID, permission.LevelUser)
}

// Config tunes the workflow.
type Config struct {
	DefaultDurationMinutes int
	// MaxDurationMinutes caps requested durations. Zero means uncapped.
	MaxDurationMinutes int
	SweepInterval      time.Duration
}

// DefaultConfig returns the stock workflow settings.
func DefaultConfig() Config {
	return Config{
		DefaultDurationMinutes: DefaultDurationMinutes,
		SweepInterval:          DefaultSweepInterval,
	}
}

// Option configures a [Workflow].
type Option func(*Workflow)

// WithPolicy replaces [DefaultPolicy].
func WithPolicy(p Policy) Option {
	return func(w *Workflow) {
		if p != nil {
			w.policy = p
		}
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(w *Workflow) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithConfig overrides the workflow settings.
func WithConfig(cfg Config) Option {
	return func(w *Workflow) {
		w.cfg = cfg
	}
}

// Workflow implements the request, approve, reject, revoke and sweep
// transitions of JIT grants.
type Workflow struct {
	store  Store
	roles  RoleChecker
	policy Policy
	clock  clock.Clock
	cfg    Config
	ids    *idSource
}

// NewWorkflow creates a [Workflow] over st, using roles for admin and policy checks.
func NewWorkflow(st Store, roles RoleChecker, opts ...Option) *Workflow {
	w := &Workflow{
		store:  st,
		roles:  roles,
		policy: DefaultPolicy,
		clock:  clock.WallClock,
		cfg:    DefaultConfig(),
		ids:    newIDSource(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cfg.DefaultDurationMinutes <= 0 {
		w.cfg.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if w.cfg.SweepInterval <= 0 {
		w.cfg.SweepInterval = DefaultSweepInterval
	}
	return w
}

// Config returns the effective settings.
func (w *Workflow) Config() Config {
	return w.cfg
}

func (w *Workflow) now() time.Time {
	return w.clock.Now().UTC().Truncate(time.Millisecond)
}

// RequestAccess files a PENDING grant for req. It fails with
// [*ActiveAccessError] if the subject already holds an active grant on the
// resource, with [*PendingRequestError] while an earlier request for it
// awaits a decision, and with [ErrPolicyDenied] if the policy rejects the
// request.
//
// At most one PENDING grant exists per (user, resource), so approving it
// always makes the approved grant the latest one.
func (w *Workflow) RequestAccess(ctx context.Context, req Request) (Grant, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	req.ResourceType = strings.TrimSpace(req.ResourceType)
	if req.UserID == "" || req.ResourceID == "" || req.ResourceType == "" {
		return Grant{}, ErrInvalidRequest
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = w.cfg.DefaultDurationMinutes
	}
	if w.cfg.MaxDurationMinutes > 0 && req.DurationMinutes > w.cfg.MaxDurationMinutes {
		return Grant{}, fmt.Errorf("%w: %w", ErrInvalidRequest, ErrDurationExceeded)
	}

	now := w.now()

	existing, err := w.store.LatestGrant(ctx, req.UserID, req.ResourceID)
	switch {
	case err == nil:
		if IsActive(existing, now) {
			return Grant{}, &ActiveAccessError{Grant: existing}
		}
		if existing.Status == StatusPending {
			return Grant{}, &PendingRequestError{Grant: existing}
		}
	case !errors.Is(err, store.ErrNotFound):
		return Grant{}, err
	}

	allowed, err := w.policy(ctx, w.roles, req)
	if err != nil {
		return Grant{}, err
	}
	if !allowed {
		return Grant{}, ErrPolicyDenied
	}

	g := Grant{
		ID:              w.ids.next(now),
		UserID:          req.UserID,
		ResourceID:      req.ResourceID,
		ResourceType:    req.ResourceType,
		Reason:          req.Reason,
		DurationMinutes: req.DurationMinutes,
		Status:          StatusPending,
		RequestedAt:     now,
	}
	if err := w.store.CreateGrant(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Approve moves a PENDING grant to APPROVED and starts its expiry clock.
func (w *Workflow) Approve(ctx context.Context, grantID, approverID string) (Grant, error) {
	if err := w.requireAdmin(ctx, approverID); err != nil {
		return Grant{}, err
	}

	g, err := w.store.ApproveGrant(ctx, grantID, w.now())
	if err != nil {
		return Grant{}, mapNotFound(err)
	}
	return g, nil
}

// Reject marks a grant REJECTED whatever its current status.
func (w *Workflow) Reject(ctx context.Context, grantID, approverID string) (Grant, error) {
	if err := w.requireAdmin(ctx, approverID); err != nil {
		return Grant{}, err
	}

	g, err := w.store.RejectGrant(ctx, grantID)
	if err != nil {
		return Grant{}, mapNotFound(err)
	}
	return g, nil
}

// Revoke sets the revoked flag. The requester must own the grant or be an admin.
func (w *Workflow) Revoke(ctx context.Context, grantID, requesterID string) (Grant, error) {
	g, err := w.store.Grant(ctx, grantID)
	if err != nil {
		return Grant{}, mapNotFound(err)
	}

	if g.UserID != requesterID {
		if err := w.roles.RequireRole(ctx, requesterID, permission.RoleAdmin); err != nil {
			if errors.Is(err, permission.ErrDenied) {
				return Grant{}, fmt.Errorf("%w: %w", ErrRevokeForbidden, err)
			}
			return Grant{}, err
		}
	}

	g, err = w.store.RevokeGrant(ctx, grantID)
	if err != nil {
		return Grant{}, mapNotFound(err)
	}
	return g, nil
}

// IsActive reports whether g is active at the workflow's current time.
func (w *Workflow) IsActive(g Grant) bool {
	return IsActive(g, w.clock.Now())
}

// HasTemporaryAccess reports whether the most recent non-revoked grant for
// (userID, resourceID) is active.
func (w *Workflow) HasTemporaryAccess(ctx context.Context, userID, resourceID string) (bool, error) {
	g, err := w.store.LatestGrant(ctx, userID, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return w.IsActive(g), nil
}

// AccessStatus summarizes a subject's grant on one resource.
type AccessStatus struct {
	HasAccess bool
	IsExpired bool
	// Grant is nil when no non-revoked grant exists.
	Grant *Grant
}

// CheckAccessStatus reports the state of the most recent non-revoked grant
// for (userID, resourceID).
func (w *Workflow) CheckAccessStatus(ctx context.Context, userID, resourceID string) (AccessStatus, error) {
	g, err := w.store.LatestGrant(ctx, userID, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccessStatus{}, nil
		}
		return AccessStatus{}, err
	}

	now := w.clock.Now()
	return AccessStatus{
		HasAccess: IsActive(g, now),
		IsExpired: IsExpired(g, now),
		Grant:     &g,
	}, nil
}

// UserGrants lists the subject's non-revoked grants, newest first.
func (w *Workflow) UserGrants(ctx context.Context, userID string) ([]Grant, error) {
	return w.store.UserGrants(ctx, userID)
}

// PendingRequests lists grants awaiting a decision. Admin only.
func (w *Workflow) PendingRequests(ctx context.Context, adminID string) ([]Grant, error) {
	if err := w.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return w.store.PendingGrants(ctx)
}

// SweepExpired revokes every non-revoked grant whose expiry has passed.
// Running it again over the same data changes nothing.
func (w *Workflow) SweepExpired(ctx context.Context) (int, error) {
	return w.store.RevokeExpired(ctx, w.now())
}

// Count returns the total number of grants ever requested.
func (w *Workflow) Count(ctx context.Context) (int, error) {
	return w.store.CountGrants(ctx)
}

func (w *Workflow) requireAdmin(ctx context.Context, subjectID string) error {
	err := w.roles.RequireRole(ctx, subjectID, permission.RoleAdmin)
	if err != nil && errors.Is(err, permission.ErrDenied) {
		return fmt.Errorf("%w: %w", ErrNotAdmin, err)
	}
	return err
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrGrantNotFound, err)
	}
	return err
}
