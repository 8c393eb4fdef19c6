package permission

import (
	"fmt"
	"sort"
	"sync"
)

// Role is an immutable role definition.
type Role struct {
	Name        string
	Type        RoleType
	Description string
}

// Level returns the hierarchy level of the role. Resource-specific roles
// are always [LevelNone], even when their name matches an organizational one.
func (r Role) Level() OrgLevel {
	if r.Type != Organizational {
		return LevelNone
	}
	return LevelOf(r.Name)
}

// Permission is a named (resource, action) pair.
type Permission struct {
	Name        string
	Resource    string
	Action      string
	Description string
}

// Matches reports whether the permission grants action on resource.
func (p Permission) Matches(resource, action string) bool {
	return p.Resource == resource && p.Action == action
}

type roleEntry struct {
	role  Role
	mask  Mask128
	perms []string
}

// Catalog is the reference data set of roles, permissions and the
// role-to-permission mapping. It is populated at startup, frozen, and read
// concurrently afterwards.
type Catalog struct {
	mu     sync.RWMutex
	bits   bitTable
	perms  map[string]Permission
	roles  map[string]*roleEntry
	frozen bool
}

// NewCatalog creates an empty [Catalog].
func NewCatalog() *Catalog {
	return &Catalog{
		bits:  newBitTable(),
		perms: make(map[string]Permission),
		roles: make(map[string]*roleEntry),
	}
}

// RegisterPermission adds a permission definition and assigns it a bit.
func (c *Catalog) RegisterPermission(p Permission) error {
	if p.Resource == "" || p.Action == "" {
		return fmt.Errorf("%w: permission %q needs resource and action", ErrInvalidDefinition, p.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrFrozen
	}
	if _, err := c.bits.assign(p.Name); err != nil {
		return err
	}

	c.perms[p.Name] = p
	return nil
}

// RegisterRole adds a role definition whose permission set is permissionNames.
// Every permission must already be registered.
func (c *Catalog) RegisterRole(role Role, permissionNames ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrFrozen
	}
	if role.Name == "" {
		return fmt.Errorf("%w: empty role name", ErrInvalidDefinition)
	}
	if role.Type != Organizational && role.Type != ResourceSpecific {
		return fmt.Errorf("%w: role %q has no type", ErrInvalidDefinition, role.Name)
	}
	if _, exists := c.roles[role.Name]; exists {
		return fmt.Errorf("%w: role %q", ErrDuplicate, role.Name)
	}

	entry := &roleEntry{role: role}
	for _, name := range permissionNames {
		bit, ok := c.bits.bit(name)
		if !ok {
			return fmt.Errorf("%w: role %q references unknown permission %q", ErrInvalidDefinition, role.Name, name)
		}
		if entry.mask.Has(bit) {
			continue
		}
		entry.mask.Set(bit)
		entry.perms = append(entry.perms, name)
	}

	c.roles[role.Name] = entry
	return nil
}

// Freeze prevents further registrations.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Frozen reports whether the catalog is frozen.
func (c *Catalog) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Role returns the role definition for name.
func (c *Catalog) Role(name string) (Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.roles[name]
	if !ok {
		return Role{}, false
	}
	return entry.role, true
}

// Roles returns all role definitions ordered by name.
func (c *Catalog) Roles() []Role {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Role, 0, len(c.roles))
	for _, entry := range c.roles {
		out = append(out, entry.role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Permission returns the permission definition for name.
func (c *Catalog) Permission(name string) (Permission, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.perms[name]
	return p, ok
}

// PermissionsOf returns the permissions assigned to a role, in assignment
// order. Unknown roles have no permissions.
func (c *Catalog) PermissionsOf(roleName string) []Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.roles[roleName]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(entry.perms))
	for _, name := range entry.perms {
		out = append(out, c.perms[name])
	}
	return out
}

// Mask returns the permission mask of a role.
func (c *Catalog) Mask(roleName string) (Mask128, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.roles[roleName]
	if !ok {
		return Mask128{}, false
	}
	return entry.mask, true
}

// MaskOf returns the union of the masks of roleNames. Unknown roles
// contribute nothing.
func (c *Catalog) MaskOf(roleNames []string) Mask128 {
	var out Mask128
	for _, name := range roleNames {
		if m, ok := c.Mask(name); ok {
			out = out.Union(m)
		}
	}
	return out
}

// Allows reports whether mask contains the named permission.
func (c *Catalog) Allows(mask Mask128, permissionName string) bool {
	c.mu.RLock()
	bit, ok := c.bits.bit(permissionName)
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// Expand returns the permissions whose bits are set in mask, ordered by bit.
func (c *Catalog) Expand(mask Mask128) []Permission {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Permission, 0, mask.Len())
	for bit := 0; bit < c.bits.len(); bit++ {
		if mask.Has(bit) {
			out = append(out, c.perms[c.bits.name(bit)])
		}
	}
	return out
}
