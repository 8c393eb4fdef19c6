package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/store"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres), mock
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected postgres rebind %q", got)
	}
	lite := New(nil, SQLite)
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("expected sqlite query unchanged, got %q", got)
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in      string
		dialect Dialect
		dsn     string
	}{
		{"postgres://u:p@db/app", Postgres, "postgres://u:p@db/app"},
		{"postgresql://db/app", Postgres, "postgresql://db/app"},
		{"sqlite://data/app.db", SQLite, "data/app.db"},
		{"sqlite::memory:", SQLite, ":memory:"},
		{"app.db", SQLite, "app.db"},
	}
	for _, tt := range tests {
		d, dsn := ParseDSN(tt.in)
		if d != tt.dialect || dsn != tt.dsn {
			t.Fatalf("ParseDSN(%q) = %s %q", tt.in, d, dsn)
		}
	}
}

func TestCreateUserUniqueViolationIsConflict(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "alice", "Alice@X.com", "alice@x.com", "hash", false, false, sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.CreateUser(context.Background(), store.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "Alice@X.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDriverFailureIsUnavailable(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnError(errors.New("connection reset"))

	if _, err := s.CountUsers(context.Background()); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := s.UserByID(context.Background(), "missing"); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetBlockedUnknownUser(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET blocked = $1 WHERE id = $2")).
		WithArgs(true, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.SetBlocked(context.Background(), "missing", true); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignRoleReportsDuplicate(t *testing.T) {
	s, mock := newMock(t)
	a := store.Assignment{UserID: "u1", Role: "USER", AssignedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, role) DO NOTHING")).
		WithArgs("u1", "USER", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, role) DO NOTHING")).
		WithArgs("u1", "USER", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := s.AssignRole(context.Background(), a)
	if err != nil || !added {
		t.Fatalf("expected first assignment to be added, got %v %v", added, err)
	}
	added, err = s.AssignRole(context.Background(), a)
	if err != nil || added {
		t.Fatalf("expected duplicate assignment to be a no-op, got %v %v", added, err)
	}
}

func TestApproveGrantNotPending(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE access_grants")).
		WithArgs(string(jit.StatusApproved), at.UnixMilli(), at.UnixMilli(), "g1", string(jit.StatusPending), false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM access_grants WHERE id = $1")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "resource_id", "resource_type", "reason", "duration_minutes",
			"status", "revoked", "requested_at", "granted_at", "expires_at",
		}).AddRow("g1", "u1", "doc1", "DOCUMENT", "", 15, "REJECTED", false, at.UnixMilli(), 0, 0))

	_, err := s.ApproveGrant(context.Background(), "g1", at)
	if !errors.Is(err, jit.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRevokeExpiredIsOneStatement(t *testing.T) {
	s, mock := newMock(t)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE access_grants SET revoked = $1 WHERE revoked = $2 AND expires_at > 0 AND expires_at <= $3")).
		WithArgs(true, false, now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := s.RevokeExpired(context.Background(), now)
	if err != nil || n != 2 {
		t.Fatalf("RevokeExpired = %d %v", n, err)
	}
}

func TestDeleteUserRemovesAssignmentsFirst(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_assignments WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM role_assignments WHERE user_id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteUser(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := s.DeleteUser(context.Background(), "missing"); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
