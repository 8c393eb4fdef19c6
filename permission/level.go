package permission

import "strings"

// OrgLevel is the position of an organizational role in the hierarchy.
// Higher values dominate lower ones.
type OrgLevel uint8

const (
	// LevelNone is the level of any name outside the hierarchy. It never
	// satisfies a level check.
	LevelNone OrgLevel = iota
	LevelUser
	LevelManager
	LevelAdmin
)

// Organizational role names.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleUser    = "USER"
)

// LevelOf returns the hierarchy level of an organizational role name.
// Unknown names map to [LevelNone].
func LevelOf(name string) OrgLevel {
	switch name {
	case RoleAdmin:
		return LevelAdmin
	case RoleManager:
		return LevelManager
	case RoleUser:
		return LevelUser
	default:
		return LevelNone
	}
}

// String returns the role name for the level, or "NONE".
func (l OrgLevel) String() string {
	switch l {
	case LevelAdmin:
		return RoleAdmin
	case LevelManager:
		return RoleManager
	case LevelUser:
		return RoleUser
	default:
		return "NONE"
	}
}

// Satisfies reports whether l meets required. LevelNone satisfies nothing
// and is satisfied by nothing.
func (l OrgLevel) Satisfies(required OrgLevel) bool {
	if l == LevelNone || required == LevelNone {
		return false
	}
	return l >= required
}

// RoleType distinguishes hierarchical roles from flat capability roles.
type RoleType uint8

const (
	Organizational RoleType = iota + 1
	ResourceSpecific
)

// String returns the canonical upper-case name of the role type.
func (t RoleType) String() string {
	switch t {
	case Organizational:
		return "ORGANIZATIONAL"
	case ResourceSpecific:
		return "RESOURCE_SPECIFIC"
	default:
		return "UNKNOWN"
	}
}

// ParseRoleType parses the canonical role type name, case-insensitively.
func ParseRoleType(s string) (RoleType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ORGANIZATIONAL":
		return Organizational, true
	case "RESOURCE_SPECIFIC":
		return ResourceSpecific, true
	default:
		return 0, false
	}
}
