package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/store"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/juju/loggo"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var logger = loggo.GetLogger("goaccess.sqlstore")

// Dialect selects placeholder syntax and DDL.
type Dialect string

const (
	Postgres Dialect = "pgx"
	SQLite   Dialect = "sqlite"
)

const pgErrUniqueViolation = "23505"

// Store implements [store.UserStore], [store.AssignmentStore] and [jit.Store].
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var (
	_ store.UserStore       = (*Store)(nil)
	_ store.AssignmentStore = (*Store)(nil)
	_ jit.Store             = (*Store)(nil)
)

// New wraps an open database. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// ParseDSN maps a database URL to a dialect and driver DSN.
//
//	postgres://... or postgresql://...  -> Postgres, URL unchanged
//	sqlite://path or sqlite::memory:     -> SQLite, path
//	anything else                        -> SQLite, as given
func ParseDSN(databaseURL string) (Dialect, string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Postgres, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return SQLite, strings.TrimPrefix(databaseURL, "sqlite://")
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return SQLite, strings.TrimPrefix(databaseURL, "sqlite:")
	default:
		return SQLite, databaseURL
	}
}

// Open connects to databaseURL and pings it. Close the returned store when
// done.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	dialect, dsn := ParseDSN(databaseURL)
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dialect == SQLite {
		// An in-memory database lives and dies with its connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	logger.Debugf("connected to %s database", dialect)
	return New(db, dialect), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// Dialect returns the active dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind converts '?' placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

// mapErr translates driver errors to the store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch code := liteErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case code&0xff == sqlite3.SQLITE_CONSTRAINT:
			// Without extended codes only the message tells the kinds apart.
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
