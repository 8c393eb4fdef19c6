// Package permission holds the authorization reference data used by goAccess:
// the fixed organizational role hierarchy, role and permission definitions,
// and the frozen [Catalog] that maps roles to permission bitmasks.
//
// # Role hierarchy
//
// Organizational roles form a closed, totally ordered set represented by
// [OrgLevel]: USER < MANAGER < ADMIN. Names outside the hierarchy map to
// [LevelNone]. Resource-specific roles (for example DOCUMENT_VIEWER) sit
// outside the hierarchy and never satisfy a level check.
//
// # Masks
//
// Every permission is assigned a bit in registration order; every role carries a
// [Mask128] with the bits of its permissions set. Up to 128 permissions are
// supported. Bits are stable for the lifetime of the process.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goAccess, authz, or session.
//   - Change role or permission definitions after [Catalog.Freeze].
package permission
