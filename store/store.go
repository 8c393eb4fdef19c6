// Package store defines the durable entities owned by the persistence
// collaborator and the repository contracts goAccess writes through.
//
// Implementations live in store/memory and store/sqlstore. Every mutation a
// contract exposes must be applied atomically by the implementation.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a keyed lookup matches nothing.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")
	// ErrUnavailable wraps backend failures (connectivity, driver errors).
	ErrUnavailable = errors.New("store: unavailable")
)

// User is a registered subject.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	EmailVerified bool
	Blocked       bool
	CreatedAt     time.Time
}

// Assignment records that a user holds a role.
type Assignment struct {
	UserID     string
	Role       string
	AssignedAt time.Time
}

// UserStore persists users. Username and e-mail are each unique.
type UserStore interface {
	// CreateUser inserts u. It returns ErrConflict if the username or
	// e-mail is taken.
	CreateUser(ctx context.Context, u User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
	// SetPasswordHash replaces the stored hash, e.g. after a cost upgrade.
	SetPasswordHash(ctx context.Context, id, hash string) error
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	// DeleteUser removes the user and its role assignments. It backs out a
	// registration that failed after the user row was written.
	DeleteUser(ctx context.Context, id string) error
}

// AssignmentStore persists subject-to-role assignments.
type AssignmentStore interface {
	// AssignRole records the assignment and reports whether it was added.
	// Assigning a held role is a no-op that returns false.
	AssignRole(ctx context.Context, a Assignment) (bool, error)
	// RemoveRole deletes the assignment if present.
	RemoveRole(ctx context.Context, userID, role string) error
	// Assignments returns the user's assignments ordered by assignment time.
	Assignments(ctx context.Context, userID string) ([]Assignment, error)
}

// IsNotFound reports whether err is or wraps [ErrNotFound].
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
