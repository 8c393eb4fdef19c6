package goAccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccess/authz"
	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/permission"
)

// accessErr maps workflow errors to the kinds of this package, keeping the
// workflow error in the chain.
func accessErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jit.ErrInvalidRequest):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, jit.ErrAlreadyActive):
		return fmt.Errorf("%w: %w", ErrAccessAlreadyActive, err)
	case errors.Is(err, jit.ErrAlreadyPending):
		return fmt.Errorf("%w: %w", ErrAccessPending, err)
	case errors.Is(err, jit.ErrPolicyDenied):
		return fmt.Errorf("%w: %w", ErrPolicyDenied, err)
	case errors.Is(err, jit.ErrGrantNotFound):
		return fmt.Errorf("%w: %w", ErrGrantNotFound, err)
	case errors.Is(err, jit.ErrNotPending):
		return fmt.Errorf("%w: %w", ErrGrantNotPending, err)
	case errors.Is(err, jit.ErrNotAdmin), errors.Is(err, jit.ErrRevokeForbidden):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	default:
		return storageErr(err)
	}
}

func grantMeta(g jit.Grant) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"grant_id":    g.ID,
			"resource_id": g.ResourceID,
		}
	}
}

// RequestAccess files a JIT access request. It is refused while the
// requester holds an active grant on the resource or has a request for it
// pending; the refusal carries that grant.
func (e *Engine) RequestAccess(ctx context.Context, req jit.Request) (*Result[AccessPayload], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}

	g, err := e.workflow.RequestAccess(ctx, req)
	if err != nil {
		mapped := accessErr(err)
		if Kind(mapped) == ErrStorage {
			return nil, mapped
		}
		e.emitAudit(ctx, auditEventAccessRequested, false, req.UserID, "", mapped, func() map[string]string {
			return map[string]string{"resource_id": req.ResourceID}
		})

		var (
			active  *jit.ActiveAccessError
			pending *jit.PendingRequestError
		)
		switch {
		case errors.As(err, &active):
			existing := active.Grant
			return &Result[AccessPayload]{
				Message: "You already have active access to this resource",
				Payload: AccessPayload{Grant: &existing},
			}, mapped
		case errors.As(err, &pending):
			existing := pending.Grant
			return &Result[AccessPayload]{
				Message: "You already have a pending request for this resource",
				Payload: AccessPayload{Grant: &existing},
			}, mapped
		case errors.Is(err, jit.ErrPolicyDenied):
			return fail[AccessPayload]("Access request denied by policy"), mapped
		case errors.Is(err, jit.ErrDurationExceeded):
			return fail[AccessPayload]("Requested duration exceeds the allowed maximum"), mapped
		default:
			return fail[AccessPayload]("Invalid access request"), mapped
		}
	}

	e.metricInc(MetricAccessRequested)
	e.emitAudit(ctx, auditEventAccessRequested, true, g.UserID, "", nil, grantMeta(g))
	return succeed("Access request submitted and pending approval", AccessPayload{Grant: &g}), nil
}

// ApproveAccess approves a PENDING request and starts its expiry clock.
// Admin only.
func (e *Engine) ApproveAccess(ctx context.Context, grantID, adminID string) (*Result[AccessPayload], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}

	g, err := e.workflow.Approve(ctx, grantID, adminID)
	if err != nil {
		mapped := accessErr(err)
		if Kind(mapped) == ErrStorage {
			return nil, mapped
		}
		e.emitAudit(ctx, auditEventAccessApproved, false, adminID, "", mapped, func() map[string]string {
			return map[string]string{"grant_id": grantID}
		})
		switch {
		case errors.Is(err, jit.ErrNotAdmin):
			return fail[AccessPayload]("Only admins can approve requests"), mapped
		case errors.Is(err, jit.ErrGrantNotFound):
			return fail[AccessPayload]("Access request not found"), mapped
		default:
			return fail[AccessPayload]("Request is not in PENDING state"), mapped
		}
	}

	e.metricInc(MetricAccessApproved)
	e.emitAudit(ctx, auditEventAccessApproved, true, g.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"grant_id":   g.ID,
			"admin_id":   adminID,
			"expires_at": g.ExpiresAt.UTC().Format(time.RFC3339),
		}
	})
	return succeed("Access approved successfully", AccessPayload{Grant: &g}), nil
}

// RejectAccess rejects a request in any state. Admin only.
func (e *Engine) RejectAccess(ctx context.Context, grantID, adminID string) (*Result[AccessPayload], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}

	g, err := e.workflow.Reject(ctx, grantID, adminID)
	if err != nil {
		mapped := accessErr(err)
		if Kind(mapped) == ErrStorage {
			return nil, mapped
		}
		e.emitAudit(ctx, auditEventAccessRejected, false, adminID, "", mapped, func() map[string]string {
			return map[string]string{"grant_id": grantID}
		})
		if errors.Is(err, jit.ErrNotAdmin) {
			return fail[AccessPayload]("Only admins can reject requests"), mapped
		}
		return fail[AccessPayload]("Access request not found"), mapped
	}

	e.metricInc(MetricAccessRejected)
	e.emitAudit(ctx, auditEventAccessRejected, true, g.UserID, "", nil, grantMeta(g))
	return succeed("Access rejected", AccessPayload{Grant: &g}), nil
}

// RevokeAccess revokes a grant. The owner and any admin may do so.
func (e *Engine) RevokeAccess(ctx context.Context, grantID, requesterID string) (*Result[AccessPayload], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}

	g, err := e.workflow.Revoke(ctx, grantID, requesterID)
	if err != nil {
		mapped := accessErr(err)
		if Kind(mapped) == ErrStorage {
			return nil, mapped
		}
		e.emitAudit(ctx, auditEventAccessRevoked, false, requesterID, "", mapped, func() map[string]string {
			return map[string]string{"grant_id": grantID}
		})
		if errors.Is(err, jit.ErrRevokeForbidden) {
			return fail[AccessPayload]("You don't have permission to revoke this access"), mapped
		}
		return fail[AccessPayload]("Access record not found"), mapped
	}

	e.metricInc(MetricAccessRevoked)
	e.emitAudit(ctx, auditEventAccessRevoked, true, g.UserID, "", nil, grantMeta(g))
	return succeed("Access revoked successfully", AccessPayload{Grant: &g}), nil
}

// CheckAccessStatus reports the subject's most recent grant on a resource.
// It is a query: Success mirrors HasAccess and no error is returned for
// the absence of access.
func (e *Engine) CheckAccessStatus(ctx context.Context, userID, resourceID string) (*Result[AccessStatus], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}

	st, err := e.workflow.CheckAccessStatus(ctx, userID, resourceID)
	if err != nil {
		return nil, storageErr(err)
	}
	if st.Grant == nil {
		return fail[AccessStatus]("No active access to this resource"), nil
	}

	out := AccessStatus{
		HasAccess: st.HasAccess,
		IsExpired: st.IsExpired,
		Grant:     st.Grant,
	}
	if !st.Grant.ExpiresAt.IsZero() {
		exp := st.Grant.ExpiresAt
		out.ExpiresAt = &exp
	}
	if !st.HasAccess {
		return &Result[AccessStatus]{Message: "No active access to this resource", Payload: out}, nil
	}
	return succeed("Access is active", out), nil
}

// UserGrants lists the subject's non-revoked grants, newest first.
func (e *Engine) UserGrants(ctx context.Context, userID string) (*Result[[]jit.Grant], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}
	grants, err := e.workflow.UserGrants(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	if grants == nil {
		grants = []jit.Grant{}
	}
	return succeed("", grants), nil
}

// PendingRequests lists requests awaiting a decision. Admin only.
func (e *Engine) PendingRequests(ctx context.Context, adminID string) (*Result[[]jit.Grant], error) {
	if e == nil || e.workflow == nil {
		return nil, ErrEngineNotReady
	}
	grants, err := e.workflow.PendingRequests(ctx, adminID)
	if err != nil {
		mapped := accessErr(err)
		if errors.Is(err, jit.ErrNotAdmin) {
			return fail[[]jit.Grant]("Only admins can view pending requests"), mapped
		}
		return nil, mapped
	}
	if grants == nil {
		grants = []jit.Grant{}
	}
	return succeed("", grants), nil
}

/*
====================================
AUTHORIZATION
====================================
*/

// Decide evaluates access like [Engine.CanAccess] and reports which path
// allowed it.
func (e *Engine) Decide(ctx context.Context, userID, resource, action, resourceID string) (authz.Decision, error) {
	if e == nil || e.authz == nil {
		return authz.Decision{}, ErrEngineNotReady
	}

	start := time.Now()
	d, err := e.authz.Decide(ctx, userID, resource, action, resourceID)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAccessLatency, time.Since(start))
	}
	if err != nil {
		return authz.Decision{}, storageErr(err)
	}

	if d.Allowed {
		e.metricInc(MetricAccessAllowed)
		return d, nil
	}
	e.metricInc(MetricAccessDenied)
	e.emitAudit(ctx, auditEventAccessDenied, false, userID, "", ErrPermissionDenied, func() map[string]string {
		return map[string]string{
			"resource":    resource,
			"action":      action,
			"resource_id": resourceID,
		}
	})
	return d, nil
}

// CanAccess is the single access decision: a role-derived permission on
// (resource, action), or an active JIT grant on resourceID.
func (e *Engine) CanAccess(ctx context.Context, userID, resource, action, resourceID string) (bool, error) {
	d, err := e.Decide(ctx, userID, resource, action, resourceID)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// HasRole reports whether userID holds role.
func (e *Engine) HasRole(ctx context.Context, userID, role string) (bool, error) {
	ok, err := e.authz.HasRole(ctx, userID, role)
	return ok, storageErr(err)
}

// HasAnyRole reports whether userID holds at least one of roles.
func (e *Engine) HasAnyRole(ctx context.Context, userID string, roles ...string) (bool, error) {
	ok, err := e.authz.HasAnyRole(ctx, userID, roles...)
	return ok, storageErr(err)
}

// HasPermission reports whether a role of userID carries the named permission.
func (e *Engine) HasPermission(ctx context.Context, userID, permissionName string) (bool, error) {
	ok, err := e.authz.HasPermission(ctx, userID, permissionName)
	return ok, storageErr(err)
}

// HasResourcePermission reports whether a role of userID allows action on resource.
func (e *Engine) HasResourcePermission(ctx context.Context, userID, resource, action string) (bool, error) {
	ok, err := e.authz.HasResourcePermission(ctx, userID, resource, action)
	return ok, storageErr(err)
}

// HasOrganizationalLevel reports whether an organizational role of userID
// sits at or above required.
func (e *Engine) HasOrganizationalLevel(ctx context.Context, userID string, required permission.OrgLevel) (bool, error) {
	ok, err := e.authz.HasOrganizationalLevel(ctx, userID, required)
	return ok, storageErr(err)
}

// HasTemporaryAccess reports whether userID holds an active grant on resourceID.
func (e *Engine) HasTemporaryAccess(ctx context.Context, userID, resourceID string) (bool, error) {
	ok, err := e.authz.HasTemporaryAccess(ctx, userID, resourceID)
	return ok, storageErr(err)
}

// PermissionsOf returns the union of the permissions of userID's roles.
func (e *Engine) PermissionsOf(ctx context.Context, userID string) ([]permission.Permission, error) {
	perms, err := e.authz.PermissionsOf(ctx, userID)
	return perms, storageErr(err)
}

// RequireRole returns nil when userID holds role and an error matching
// [ErrPermissionDenied] otherwise.
func (e *Engine) RequireRole(ctx context.Context, userID, role string) error {
	return storageErr(e.authz.RequireRole(ctx, userID, role))
}

// RequireLevel is the hierarchy counterpart of [Engine.RequireRole].
func (e *Engine) RequireLevel(ctx context.Context, userID string, required permission.OrgLevel) error {
	return storageErr(e.authz.RequireLevel(ctx, userID, required))
}
