package goAccess

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goAccess/permission"
	"github.com/MrEthical07/goAccess/store"
	"github.com/google/uuid"
)

// requireAdmin returns an error matching ErrPermissionDenied when adminID
// is not an ADMIN, and a storage error when the check itself failed.
func (e *Engine) requireAdmin(ctx context.Context, adminID string) error {
	return storageErr(e.authz.RequireRole(ctx, adminID, permission.RoleAdmin))
}

// BlockUser marks userID blocked and closes all of its sessions.
func (e *Engine) BlockUser(ctx context.Context, userID, adminID string) (*Result[Empty], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	failed := func(message string, err error) (*Result[Empty], error) {
		e.emitAudit(ctx, auditEventUserBlocked, false, userID, "", err, func() map[string]string {
			return map[string]string{"admin_id": adminID}
		})
		return fail[Empty](message), err
	}

	if err := e.requireAdmin(ctx, adminID); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return failed("Permission denied", err)
		}
		return nil, err
	}
	if userID == adminID {
		return failed("Cannot block yourself", ErrCannotBlockSelf)
	}

	if err := e.users.SetBlocked(ctx, userID, true); err != nil {
		if store.IsNotFound(err) {
			return failed("User not found", ErrUserNotFound)
		}
		return nil, storageErr(err)
	}

	closed, err := e.sessions.InvalidateAll(ctx, userID)
	if err != nil {
		logger.Errorf("closing sessions of blocked user %s failed: %v", userID, err)
		return nil, storageErr(err)
	}

	e.metricInc(MetricUserBlocked)
	if closed > 0 && e.metrics != nil {
		e.metrics.Add(MetricSessionInvalidated, uint64(closed))
	}
	e.emitAudit(ctx, auditEventUserBlocked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"admin_id": adminID}
	})

	return succeed("User blocked successfully", Empty{}), nil
}

// UnblockUser clears the blocked flag. Sessions closed by the block stay
// closed.
func (e *Engine) UnblockUser(ctx context.Context, userID, adminID string) (*Result[Empty], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	failed := func(message string, err error) (*Result[Empty], error) {
		e.emitAudit(ctx, auditEventUserUnblocked, false, userID, "", err, func() map[string]string {
			return map[string]string{"admin_id": adminID}
		})
		return fail[Empty](message), err
	}

	if err := e.requireAdmin(ctx, adminID); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return failed("Permission denied", err)
		}
		return nil, err
	}

	if err := e.users.SetBlocked(ctx, userID, false); err != nil {
		if store.IsNotFound(err) {
			return failed("User not found", ErrUserNotFound)
		}
		return nil, storageErr(err)
	}

	e.emitAudit(ctx, auditEventUserUnblocked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"admin_id": adminID}
	})
	return succeed("User unblocked successfully", Empty{}), nil
}

// AssignRole grants role to userID. Holding the role already is a failure
// that changes nothing.
func (e *Engine) AssignRole(ctx context.Context, userID, role, adminID string) (*Result[Empty], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	failed := func(message string, err error) (*Result[Empty], error) {
		e.emitAudit(ctx, auditEventRoleAssigned, false, userID, "", err, func() map[string]string {
			return map[string]string{"role": role, "admin_id": adminID}
		})
		return fail[Empty](message), err
	}

	if err := e.requireAdmin(ctx, adminID); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return failed("Only admins can assign roles", err)
		}
		return nil, err
	}
	if _, ok := e.catalog.Role(role); !ok {
		return failed("Role not found", ErrRoleNotFound)
	}
	if _, err := e.users.UserByID(ctx, userID); err != nil {
		if store.IsNotFound(err) {
			return failed("User not found", ErrUserNotFound)
		}
		return nil, storageErr(err)
	}

	added, err := e.assignments.AssignRole(ctx, store.Assignment{
		UserID:     userID,
		Role:       role,
		AssignedAt: e.clock.Now().UTC(),
	})
	if err != nil {
		return nil, storageErr(err)
	}
	if !added {
		return failed("User already has this role", ErrRoleAlreadyHeld)
	}

	e.metricInc(MetricRoleAssigned)
	e.emitAudit(ctx, auditEventRoleAssigned, true, userID, "", nil, func() map[string]string {
		return map[string]string{"role": role, "admin_id": adminID}
	})
	return succeed("Role assigned successfully", Empty{}), nil
}

// RevokeRole removes role from userID. Revoking a role the user does not
// hold succeeds.
func (e *Engine) RevokeRole(ctx context.Context, userID, role, adminID string) (*Result[Empty], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	failed := func(message string, err error) (*Result[Empty], error) {
		e.emitAudit(ctx, auditEventRoleRevoked, false, userID, "", err, func() map[string]string {
			return map[string]string{"role": role, "admin_id": adminID}
		})
		return fail[Empty](message), err
	}

	if err := e.requireAdmin(ctx, adminID); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return failed("Only admins can revoke roles", err)
		}
		return nil, err
	}
	if _, ok := e.catalog.Role(role); !ok {
		return failed("Role not found", ErrRoleNotFound)
	}

	if err := e.assignments.RemoveRole(ctx, userID, role); err != nil {
		return nil, storageErr(err)
	}

	e.metricInc(MetricRoleRevoked)
	e.emitAudit(ctx, auditEventRoleRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"role": role, "admin_id": adminID}
	})
	return succeed("Role revoked successfully", Empty{}), nil
}

// ListUsers returns every account. Admin only.
func (e *Engine) ListUsers(ctx context.Context, adminID string) (*Result[[]UserInfo], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.requireAdmin(ctx, adminID); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return fail[[]UserInfo]("Permission denied"), err
		}
		return nil, err
	}

	users, err := e.users.ListUsers(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		info, err := e.userInfo(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return succeed("", out), nil
}

// Roles lists every role the catalog defines, ordered by name.
func (e *Engine) Roles(ctx context.Context) (*Result[[]RoleInfo], error) {
	if e == nil || e.catalog == nil {
		return nil, ErrEngineNotReady
	}
	return succeed("Roles retrieved", roleInfos(e.catalog.Roles())), nil
}

// RolesOf lists the roles userID holds, in assignment order.
func (e *Engine) RolesOf(ctx context.Context, userID string) (*Result[[]RoleInfo], error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if _, err := e.users.UserByID(ctx, userID); err != nil {
		if store.IsNotFound(err) {
			return fail[[]RoleInfo]("User not found"), ErrUserNotFound
		}
		return nil, storageErr(err)
	}

	roles, err := e.authz.RolesOf(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return succeed("Roles retrieved", roleInfos(roles)), nil
}

// Stats returns entity totals.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	if e == nil || e.users == nil {
		return Stats{}, ErrEngineNotReady
	}
	users, err := e.users.CountUsers(ctx)
	if err != nil {
		return Stats{}, storageErr(err)
	}
	grants, err := e.workflow.Count(ctx)
	if err != nil {
		return Stats{}, storageErr(err)
	}
	return Stats{TotalUsers: users, TotalAccessRequests: grants}, nil
}

// DefaultSeedAccounts returns one verified account per organizational role.
func DefaultSeedAccounts() []SeedAccount {
	return []SeedAccount{
		{Username: "admin", Email: "admin@example.com", Role: permission.RoleAdmin},
		{Username: "manager", Email: "manager@example.com", Role: permission.RoleManager},
		{Username: "user", Email: "user@example.com", Role: permission.RoleUser},
	}
}

// Seed creates verified accounts sharing pwd and assigns their roles.
// Existing usernames are left alone apart from the role assignment, so
// seeding twice is harmless.
func (e *Engine) Seed(ctx context.Context, pwd string, accounts ...SeedAccount) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if len(accounts) == 0 {
		accounts = DefaultSeedAccounts()
	}

	for _, acct := range accounts {
		if _, ok := e.catalog.Role(acct.Role); !ok {
			return fmt.Errorf("%w: seed role %q", ErrRoleNotFound, acct.Role)
		}

		user, err := e.users.UserByUsername(ctx, acct.Username)
		switch {
		case err == nil:
		case store.IsNotFound(err):
			hash, err := e.hasher.Hash(pwd)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidInput, err)
			}
			user = store.User{
				ID:            uuid.NewString(),
				Username:      acct.Username,
				Email:         acct.Email,
				PasswordHash:  hash,
				EmailVerified: true,
				CreatedAt:     e.clock.Now().UTC(),
			}
			if err := e.users.CreateUser(ctx, user); err != nil {
				return storageErr(err)
			}
			logger.Infof("seeded account %s with role %s", acct.Username, acct.Role)
		default:
			return storageErr(err)
		}

		if _, err := e.assignments.AssignRole(ctx, store.Assignment{
			UserID:     user.ID,
			Role:       acct.Role,
			AssignedAt: e.clock.Now().UTC(),
		}); err != nil {
			return storageErr(err)
		}
	}
	return nil
}
