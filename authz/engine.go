// Package authz evaluates roles, permissions, the organizational hierarchy
// and JIT grants for a subject. [Engine.CanAccess] is the single decision
// point every protected operation calls.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/permission"
	"github.com/MrEthical07/goAccess/store"
	"github.com/juju/clock"
)

// AccessPath says which rule allowed a request.
type AccessPath uint8

const (
	AccessDenied AccessPath = iota
	// AccessPermission means a role-derived permission matched.
	AccessPermission
	// AccessTemporary means an active JIT grant matched.
	AccessTemporary
)

// String returns a human readable name of the path.
func (p AccessPath) String() string {
	switch p {
	case AccessPermission:
		return "permanent permission"
	case AccessTemporary:
		return "temporary JIT access"
	default:
		return "denied"
	}
}

// Decision is the outcome of [Engine.Decide].
type Decision struct {
	Allowed bool
	Path    AccessPath
}

// Engine answers authorization questions. It holds no per-subject state;
// every call reads through to the stores.
type Engine struct {
	catalog     *permission.Catalog
	assignments store.AssignmentStore
	grants      jit.Store
	clock       clock.Clock
}

// Option configures an [Engine].
type Option func(*Engine)

// WithClock sets the time source used to evaluate grant expiry.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an [Engine]. catalog should be frozen.
func New(catalog *permission.Catalog, assignments store.AssignmentStore, grants jit.Store, opts ...Option) *Engine {
	e := &Engine{
		catalog:     catalog,
		assignments: assignments,
		grants:      grants,
		clock:       clock.WallClock,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the reference data the engine evaluates against.
func (e *Engine) Catalog() *permission.Catalog {
	return e.catalog
}

// RolesOf returns the catalog roles held by subjectID, in assignment order.
// Assignments naming roles missing from the catalog are ignored.
func (e *Engine) RolesOf(ctx context.Context, subjectID string) ([]permission.Role, error) {
	assignments, err := e.assignments.Assignments(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	roles := make([]permission.Role, 0, len(assignments))
	for _, a := range assignments {
		if role, ok := e.catalog.Role(a.Role); ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// RoleNames returns the names of the roles held by subjectID.
func (e *Engine) RoleNames(ctx context.Context, subjectID string) ([]string, error) {
	roles, err := e.RolesOf(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names, nil
}

func (e *Engine) mask(ctx context.Context, subjectID string) (permission.Mask128, error) {
	names, err := e.RoleNames(ctx, subjectID)
	if err != nil {
		return permission.Mask128{}, err
	}
	return e.catalog.MaskOf(names), nil
}

// PermissionsOf returns the union of the permissions of the subject's roles.
func (e *Engine) PermissionsOf(ctx context.Context, subjectID string) ([]permission.Permission, error) {
	m, err := e.mask(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return e.catalog.Expand(m), nil
}

// HasRole reports whether subjectID holds roleName.
func (e *Engine) HasRole(ctx context.Context, subjectID, roleName string) (bool, error) {
	return e.HasAnyRole(ctx, subjectID, roleName)
}

// HasAnyRole reports whether subjectID holds at least one of roleNames.
func (e *Engine) HasAnyRole(ctx context.Context, subjectID string, roleNames ...string) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}
	roles, err := e.RolesOf(ctx, subjectID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		for _, want := range roleNames {
			if r.Name == want {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPermission reports whether one of the subject's roles carries the
// named permission.
func (e *Engine) HasPermission(ctx context.Context, subjectID, permissionName string) (bool, error) {
	m, err := e.mask(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return e.catalog.Allows(m, permissionName), nil
}

// HasResourcePermission reports whether some permission of the subject
// matches both resource and action.
func (e *Engine) HasResourcePermission(ctx context.Context, subjectID, resource, action string) (bool, error) {
	perms, err := e.PermissionsOf(ctx, subjectID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p.Matches(resource, action) {
			return true, nil
		}
	}
	return false, nil
}

// HasOrganizationalLevel reports whether the subject holds an organizational
// role at or above required. Resource-specific roles never count.
func (e *Engine) HasOrganizationalLevel(ctx context.Context, subjectID string, required permission.OrgLevel) (bool, error) {
	if required == permission.LevelNone {
		return false, nil
	}
	roles, err := e.RolesOf(ctx, subjectID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r.Level().Satisfies(required) {
			return true, nil
		}
	}
	return false, nil
}

// HasOrganizationalRoleLevel is [Engine.HasOrganizationalLevel] keyed by role
// name. Names outside the hierarchy are never satisfied.
func (e *Engine) HasOrganizationalRoleLevel(ctx context.Context, subjectID, requiredRole string) (bool, error) {
	return e.HasOrganizationalLevel(ctx, subjectID, permission.LevelOf(requiredRole))
}

// HasTemporaryAccess reports whether the most recent non-revoked grant for
// (subjectID, resourceID) is active.
func (e *Engine) HasTemporaryAccess(ctx context.Context, subjectID, resourceID string) (bool, error) {
	if resourceID == "" {
		return false, nil
	}
	g, err := e.grants.LatestGrant(ctx, subjectID, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return jit.IsActive(g, e.clock.Now()), nil
}

// Decide evaluates access to (resource, action) and, when resourceID is
// set, the subject's JIT grant on it. Blanket permission and an active grant
// are alternatives: either one allows.
func (e *Engine) Decide(ctx context.Context, subjectID, resource, action, resourceID string) (Decision, error) {
	ok, err := e.HasResourcePermission(ctx, subjectID, resource, action)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{Allowed: true, Path: AccessPermission}, nil
	}

	ok, err = e.HasTemporaryAccess(ctx, subjectID, resourceID)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return Decision{Allowed: true, Path: AccessTemporary}, nil
	}
	return Decision{Path: AccessDenied}, nil
}

// CanAccess reports whether the subject may perform action on resource,
// optionally through a JIT grant on resourceID.
func (e *Engine) CanAccess(ctx context.Context, subjectID, resource, action, resourceID string) (bool, error) {
	d, err := e.Decide(ctx, subjectID, resource, action, resourceID)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// RequireRole returns nil when subjectID holds roleName and an error wrapping
// [permission.ErrDenied] when it does not. Storage errors pass through.
func (e *Engine) RequireRole(ctx context.Context, subjectID, roleName string) error {
	ok, err := e.HasRole(ctx, subjectID, roleName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: role %s required", permission.ErrDenied, roleName)
	}
	return nil
}

// RequireLevel is the hierarchy counterpart of [Engine.RequireRole].
func (e *Engine) RequireLevel(ctx context.Context, subjectID string, required permission.OrgLevel) error {
	ok, err := e.HasOrganizationalLevel(ctx, subjectID, required)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s level required", permission.ErrDenied, required)
	}
	return nil
}
