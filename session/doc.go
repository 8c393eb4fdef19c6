// Package session provides Redis-backed opaque session tokens with a single
// active session per subject.
//
// # Storage layout
//
// A session is a Redis hash under "as:<sha256(token)>" holding the owning
// subject, creation and expiry times (unix milliseconds) and an active flag.
// The raw token is never written. Each subject has an index set under
// "au:<subject>" listing the hashed ids of its active sessions.
//
// All state transitions run as Lua scripts, so creation, validation and
// invalidation are atomic with respect to each other. No script sets the
// active flag on an existing record, which makes deactivation terminal.
//
// # What this package must NOT do
//
//   - Import goAccess or any authorization package.
//   - Store plaintext tokens.
package session
