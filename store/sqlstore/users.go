package sqlstore

import (
	"context"
	"strings"

	"github.com/MrEthical07/goAccess/store"
)

const userColumns = `id, username, email, password_hash, email_verified, blocked, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (store.User, error) {
	var (
		u         store.User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.Blocked, &createdAt); err != nil {
		return store.User{}, mapErr(err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

// CreateUser implements [store.UserStore].
func (s *Store) CreateUser(ctx context.Context, u store.User) error {
	_, err := s.exec(ctx,
		`INSERT INTO users (id, username, email, email_key, password_hash, email_verified, blocked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, emailKey(u.Email), u.PasswordHash, u.EmailVerified, u.Blocked, toMillis(u.CreatedAt),
	)
	return err
}

// UserByID implements [store.UserStore].
func (s *Store) UserByID(ctx context.Context, id string) (store.User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// UserByUsername implements [store.UserStore].
func (s *Store) UserByUsername(ctx context.Context, username string) (store.User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// UserByEmail implements [store.UserStore]. E-mail matching is case-insensitive.
func (s *Store) UserByEmail(ctx context.Context, email string) (store.User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email_key = ?`, emailKey(email)))
}

// SetEmailVerified implements [store.UserStore].
func (s *Store) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	return s.updateUser(ctx, `UPDATE users SET email_verified = ? WHERE id = ?`, verified, id)
}

// SetBlocked implements [store.UserStore].
func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return s.updateUser(ctx, `UPDATE users SET blocked = ? WHERE id = ?`, blocked, id)
}

// SetPasswordHash implements [store.UserStore].
func (s *Store) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.updateUser(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

// DeleteUser implements [store.UserStore]. Assignments go first so a
// failure never leaves them without their user.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, `DELETE FROM role_assignments WHERE user_id = ?`, id); err != nil {
		return err
	}
	return s.updateUser(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (s *Store) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListUsers implements [store.UserStore]. Users are ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err())
}

// CountUsers implements [store.UserStore].
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}
