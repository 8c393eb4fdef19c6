package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/store"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, "sqlite::memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	return s
}

func TestSQLiteUsers(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	u := store.User{ID: "u1", Username: "alice", Email: "Alice@X.com", PasswordHash: "h", CreatedAt: epoch}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := s.CreateUser(ctx, store.User{ID: "u2", Username: "alice", Email: "b@x.com", CreatedAt: epoch}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if err := s.CreateUser(ctx, store.User{ID: "u3", Username: "bob", Email: "alice@x.com", CreatedAt: epoch}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected email conflict, got %v", err)
	}

	got, err := s.UserByEmail(ctx, "ALICE@x.com")
	if err != nil {
		t.Fatalf("UserByEmail failed: %v", err)
	}
	if got.ID != "u1" || got.Email != "Alice@X.com" || !got.CreatedAt.Equal(epoch) {
		t.Fatalf("unexpected user %+v", got)
	}

	if err := s.SetEmailVerified(ctx, "u1", true); err != nil {
		t.Fatalf("SetEmailVerified failed: %v", err)
	}
	if err := s.SetBlocked(ctx, "u1", true); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}
	if err := s.SetPasswordHash(ctx, "u1", "$argon2id$rehashed"); err != nil {
		t.Fatalf("SetPasswordHash failed: %v", err)
	}
	got, _ = s.UserByUsername(ctx, "alice")
	if !got.EmailVerified || !got.Blocked {
		t.Fatalf("expected flags to persist, got %+v", got)
	}
	if got.PasswordHash != "$argon2id$rehashed" {
		t.Fatalf("expected new password hash, got %q", got.PasswordHash)
	}
	if err := s.SetBlocked(ctx, "missing", true); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers = %v %v", users, err)
	}
	if n, _ := s.CountUsers(ctx); n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestSQLiteAssignments(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	for i, role := range []string{"USER", "DOCUMENT_VIEWER"} {
		added, err := s.AssignRole(ctx, store.Assignment{UserID: "u1", Role: role, AssignedAt: epoch.Add(time.Duration(i) * time.Second)})
		if err != nil || !added {
			t.Fatalf("AssignRole(%s) = %v %v", role, added, err)
		}
	}
	added, err := s.AssignRole(ctx, store.Assignment{UserID: "u1", Role: "USER", AssignedAt: epoch})
	if err != nil || added {
		t.Fatalf("expected duplicate to be a no-op, got %v %v", added, err)
	}

	as, err := s.Assignments(ctx, "u1")
	if err != nil || len(as) != 2 || as[0].Role != "USER" {
		t.Fatalf("Assignments = %+v %v", as, err)
	}
	if err := s.RemoveRole(ctx, "u1", "USER"); err != nil {
		t.Fatalf("RemoveRole failed: %v", err)
	}
	as, _ = s.Assignments(ctx, "u1")
	if len(as) != 1 || as[0].Role != "DOCUMENT_VIEWER" {
		t.Fatalf("unexpected assignments after remove %+v", as)
	}
}

func TestSQLiteDeleteUser(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	_ = s.CreateUser(ctx, store.User{ID: "u1", Username: "alice", Email: "a@x.com", PasswordHash: "h", CreatedAt: epoch})
	_, _ = s.AssignRole(ctx, store.Assignment{UserID: "u1", Role: "USER", AssignedAt: epoch})

	if err := s.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := s.UserByID(ctx, "u1"); !store.IsNotFound(err) {
		t.Fatalf("expected user gone, got %v", err)
	}
	if as, err := s.Assignments(ctx, "u1"); err != nil || len(as) != 0 {
		t.Fatalf("expected assignments gone, got %+v %v", as, err)
	}
	if err := s.CreateUser(ctx, store.User{ID: "u2", Username: "alice", Email: "a@x.com", PasswordHash: "h", CreatedAt: epoch}); err != nil {
		t.Fatalf("expected names reusable, got %v", err)
	}
}

func TestSQLiteGrantLifecycle(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	g := jit.Grant{
		ID:              "g1",
		UserID:          "u1",
		ResourceID:      "doc1",
		ResourceType:    "DOCUMENT",
		Reason:          "audit",
		DurationMinutes: 15,
		Status:          jit.StatusPending,
		RequestedAt:     epoch,
	}
	if err := s.CreateGrant(ctx, g); err != nil {
		t.Fatalf("CreateGrant failed: %v", err)
	}
	if err := s.CreateGrant(ctx, g); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate id conflict, got %v", err)
	}

	pending, err := s.PendingGrants(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("PendingGrants = %v %v", pending, err)
	}

	approved, err := s.ApproveGrant(ctx, "g1", epoch.Add(time.Minute))
	if err != nil {
		t.Fatalf("ApproveGrant failed: %v", err)
	}
	if approved.Status != jit.StatusApproved || !approved.ExpiresAt.Equal(epoch.Add(16*time.Minute)) {
		t.Fatalf("unexpected approved grant %+v", approved)
	}
	if _, err := s.ApproveGrant(ctx, "g1", epoch); !errors.Is(err, jit.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if _, err := s.ApproveGrant(ctx, "missing", epoch); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	latest, err := s.LatestGrant(ctx, "u1", "doc1")
	if err != nil || latest.ID != "g1" || !jit.IsActive(latest, epoch.Add(10*time.Minute)) {
		t.Fatalf("LatestGrant = %+v %v", latest, err)
	}

	n, err := s.RevokeExpired(ctx, epoch.Add(15*time.Minute))
	if err != nil || n != 0 {
		t.Fatalf("expected nothing to sweep before expiry, got %d %v", n, err)
	}
	n, err = s.RevokeExpired(ctx, epoch.Add(16*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("expected one swept grant at expiry, got %d %v", n, err)
	}
	n, _ = s.RevokeExpired(ctx, epoch.Add(time.Hour))
	if n != 0 {
		t.Fatalf("expected sweep to be idempotent, got %d", n)
	}

	if _, err := s.LatestGrant(ctx, "u1", "doc1"); !store.IsNotFound(err) {
		t.Fatalf("expected revoked grant to be skipped, got %v", err)
	}
	grants, err := s.UserGrants(ctx, "u1")
	if err != nil || len(grants) != 0 {
		t.Fatalf("UserGrants = %v %v", grants, err)
	}
	if c, _ := s.CountGrants(ctx); c != 1 {
		t.Fatalf("expected 1 grant counted, got %d", c)
	}

	rejected, err := s.RejectGrant(ctx, "g1")
	if err != nil || rejected.Status != jit.StatusRejected {
		t.Fatalf("RejectGrant = %+v %v", rejected, err)
	}
	if _, err := s.RevokeGrant(ctx, "missing"); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
