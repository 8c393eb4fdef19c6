// Package memory provides mutex-guarded in-memory implementations of the
// goAccess storage contracts. Each method holds the lock only for its own map
// operations, so every mutation is atomic with respect to concurrent callers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/store"
)

// Store implements [store.UserStore], [store.AssignmentStore] and [jit.Store].
type Store struct {
	mu sync.RWMutex

	users      map[string]store.User
	byUsername map[string]string
	byEmail    map[string]string

	assignments map[string][]store.Assignment

	grants map[string]jit.Grant
}

var (
	_ store.UserStore       = (*Store)(nil)
	_ store.AssignmentStore = (*Store)(nil)
	_ jit.Store             = (*Store)(nil)
)

// New returns an empty [Store].
func New() *Store {
	return &Store{
		users:       make(map[string]store.User),
		byUsername:  make(map[string]string),
		byEmail:     make(map[string]string),
		assignments: make(map[string][]store.Assignment),
		grants:      make(map[string]jit.Grant),
	}
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

// CreateUser implements [store.UserStore].
func (s *Store) CreateUser(_ context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return store.ErrConflict
	}
	if _, exists := s.byUsername[u.Username]; exists {
		return store.ErrConflict
	}
	if _, exists := s.byEmail[emailKey(u.Email)]; exists {
		return store.ErrConflict
	}

	s.users[u.ID] = u
	s.byUsername[u.Username] = u.ID
	s.byEmail[emailKey(u.Email)] = u.ID
	return nil
}

// UserByID implements [store.UserStore].
func (s *Store) UserByID(_ context.Context, id string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// UserByUsername implements [store.UserStore].
func (s *Store) UserByUsername(_ context.Context, username string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

// UserByEmail implements [store.UserStore]. E-mail matching is case-insensitive.
func (s *Store) UserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

// SetEmailVerified implements [store.UserStore].
func (s *Store) SetEmailVerified(_ context.Context, id string, verified bool) error {
	return s.updateUser(id, func(u *store.User) { u.EmailVerified = verified })
}

// SetBlocked implements [store.UserStore].
func (s *Store) SetBlocked(_ context.Context, id string, blocked bool) error {
	return s.updateUser(id, func(u *store.User) { u.Blocked = blocked })
}

// SetPasswordHash implements [store.UserStore].
func (s *Store) SetPasswordHash(_ context.Context, id, hash string) error {
	return s.updateUser(id, func(u *store.User) { u.PasswordHash = hash })
}

// DeleteUser implements [store.UserStore].
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	delete(s.byUsername, u.Username)
	delete(s.byEmail, emailKey(u.Email))
	delete(s.assignments, id)
	return nil
}

func (s *Store) updateUser(id string, fn func(*store.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

// ListUsers implements [store.UserStore]. Users are ordered by creation time.
func (s *Store) ListUsers(_ context.Context) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Username < out[j].Username
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CountUsers implements [store.UserStore].
func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// AssignRole implements [store.AssignmentStore].
func (s *Store) AssignRole(_ context.Context, a store.Assignment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assignments[a.UserID] {
		if existing.Role == a.Role {
			return false, nil
		}
	}
	s.assignments[a.UserID] = append(s.assignments[a.UserID], a)
	return true, nil
}

// RemoveRole implements [store.AssignmentStore].
func (s *Store) RemoveRole(_ context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.assignments[userID]
	kept := current[:0]
	for _, a := range current {
		if a.Role != role {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		delete(s.assignments, userID)
		return nil
	}
	s.assignments[userID] = kept
	return nil
}

// Assignments implements [store.AssignmentStore].
func (s *Store) Assignments(_ context.Context, userID string) ([]store.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.assignments[userID]
	out := make([]store.Assignment, len(current))
	copy(out, current)
	return out, nil
}

// CreateGrant implements [jit.Store].
func (s *Store) CreateGrant(_ context.Context, g jit.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.grants[g.ID]; exists {
		return store.ErrConflict
	}
	s.grants[g.ID] = g
	return nil
}

// Grant implements [jit.Store].
func (s *Store) Grant(_ context.Context, id string) (jit.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.grants[id]
	if !ok {
		return jit.Grant{}, store.ErrNotFound
	}
	return g, nil
}

// LatestGrant implements [jit.Store].
func (s *Store) LatestGrant(_ context.Context, userID, resourceID string) (jit.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest jit.Grant
		found  bool
	)
	for _, g := range s.grants {
		if g.Revoked || g.UserID != userID || g.ResourceID != resourceID {
			continue
		}
		if !found || newer(g, latest) {
			latest = g
			found = true
		}
	}
	if !found {
		return jit.Grant{}, store.ErrNotFound
	}
	return latest, nil
}

// UserGrants implements [jit.Store].
func (s *Store) UserGrants(_ context.Context, userID string) ([]jit.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []jit.Grant
	for _, g := range s.grants {
		if g.UserID == userID && !g.Revoked {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

// PendingGrants implements [jit.Store].
func (s *Store) PendingGrants(_ context.Context) ([]jit.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []jit.Grant
	for _, g := range s.grants {
		if g.Status == jit.StatusPending && !g.Revoked {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out, nil
}

// ApproveGrant implements [jit.Store].
func (s *Store) ApproveGrant(_ context.Context, id string, at time.Time) (jit.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[id]
	if !ok {
		return jit.Grant{}, store.ErrNotFound
	}
	if g.Status != jit.StatusPending || g.Revoked {
		return jit.Grant{}, jit.ErrNotPending
	}

	g.Status = jit.StatusApproved
	g.GrantedAt = at
	g.ExpiresAt = at.Add(time.Duration(g.DurationMinutes) * time.Minute)
	s.grants[id] = g
	return g, nil
}

// RejectGrant implements [jit.Store].
func (s *Store) RejectGrant(_ context.Context, id string) (jit.Grant, error) {
	return s.updateGrant(id, func(g *jit.Grant) { g.Status = jit.StatusRejected })
}

// RevokeGrant implements [jit.Store].
func (s *Store) RevokeGrant(_ context.Context, id string) (jit.Grant, error) {
	return s.updateGrant(id, func(g *jit.Grant) { g.Revoked = true })
}

func (s *Store) updateGrant(id string, fn func(*jit.Grant)) (jit.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.grants[id]
	if !ok {
		return jit.Grant{}, store.ErrNotFound
	}
	fn(&g)
	s.grants[id] = g
	return g, nil
}

// RevokeExpired implements [jit.Store].
func (s *Store) RevokeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, g := range s.grants {
		if g.Revoked || g.ExpiresAt.IsZero() || g.ExpiresAt.After(now) {
			continue
		}
		g.Revoked = true
		s.grants[id] = g
		n++
	}
	return n, nil
}

// CountGrants implements [jit.Store].
func (s *Store) CountGrants(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.grants), nil
}

// newer orders grants by request time, then by id.
func newer(a, b jit.Grant) bool {
	if !a.RequestedAt.Equal(b.RequestedAt) {
		return a.RequestedAt.After(b.RequestedAt)
	}
	return a.ID > b.ID
}
