package permission

import "errors"

var (
	// ErrDenied is wrapped by every authorization guard failure so callers in
	// any package can tell a denial apart from a storage error.
	ErrDenied = errors.New("permission denied")

	// ErrFrozen is returned by registrations after Catalog.Freeze.
	ErrFrozen = errors.New("catalog frozen")
	// ErrDuplicate is returned when a role or permission name is reused.
	ErrDuplicate = errors.New("already registered")
	// ErrInvalidDefinition is returned for incomplete role or permission
	// definitions and for references to unknown permissions.
	ErrInvalidDefinition = errors.New("invalid catalog definition")
)
