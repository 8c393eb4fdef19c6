package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAccess/jit"
	"github.com/MrEthical07/goAccess/store"
)

const grantColumns = `id, user_id, resource_id, resource_type, reason, duration_minutes, status, revoked, requested_at, granted_at, expires_at`

func scanGrant(row rowScanner) (jit.Grant, error) {
	var (
		g                                 jit.Grant
		status                            string
		requestedAt, grantedAt, expiresAt int64
	)
	err := row.Scan(&g.ID, &g.UserID, &g.ResourceID, &g.ResourceType, &g.Reason, &g.DurationMinutes,
		&status, &g.Revoked, &requestedAt, &grantedAt, &expiresAt)
	if err != nil {
		return jit.Grant{}, mapErr(err)
	}
	g.Status = jit.Status(status)
	g.RequestedAt = fromMillis(requestedAt)
	g.GrantedAt = fromMillis(grantedAt)
	g.ExpiresAt = fromMillis(expiresAt)
	return g, nil
}

func (s *Store) grants(ctx context.Context, query string, args ...any) ([]jit.Grant, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []jit.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, mapErr(rows.Err())
}

// CreateGrant implements [jit.Store].
func (s *Store) CreateGrant(ctx context.Context, g jit.Grant) error {
	_, err := s.exec(ctx,
		`INSERT INTO access_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.ResourceID, g.ResourceType, g.Reason, g.DurationMinutes,
		string(g.Status), g.Revoked, toMillis(g.RequestedAt), toMillis(g.GrantedAt), toMillis(g.ExpiresAt),
	)
	return err
}

// Grant implements [jit.Store].
func (s *Store) Grant(ctx context.Context, id string) (jit.Grant, error) {
	return scanGrant(s.queryRow(ctx, `SELECT `+grantColumns+` FROM access_grants WHERE id = ?`, id))
}

// LatestGrant implements [jit.Store].
func (s *Store) LatestGrant(ctx context.Context, userID, resourceID string) (jit.Grant, error) {
	return scanGrant(s.queryRow(ctx,
		`SELECT `+grantColumns+` FROM access_grants
		 WHERE user_id = ? AND resource_id = ? AND revoked = ?
		 ORDER BY requested_at DESC, id DESC LIMIT 1`,
		userID, resourceID, false,
	))
}

// UserGrants implements [jit.Store].
func (s *Store) UserGrants(ctx context.Context, userID string) ([]jit.Grant, error) {
	return s.grants(ctx,
		`SELECT `+grantColumns+` FROM access_grants
		 WHERE user_id = ? AND revoked = ? ORDER BY requested_at DESC, id DESC`,
		userID, false,
	)
}

// PendingGrants implements [jit.Store].
func (s *Store) PendingGrants(ctx context.Context) ([]jit.Grant, error) {
	return s.grants(ctx,
		`SELECT `+grantColumns+` FROM access_grants
		 WHERE status = ? AND revoked = ? ORDER BY requested_at, id`,
		string(jit.StatusPending), false,
	)
}

// ApproveGrant implements [jit.Store]. The state check and the update are
// one conditional statement; a miss is then classified by a plain read.
func (s *Store) ApproveGrant(ctx context.Context, id string, at time.Time) (jit.Grant, error) {
	ms := toMillis(at)
	g, err := scanGrant(s.queryRow(ctx,
		`UPDATE access_grants
		 SET status = ?, granted_at = ?, expires_at = CAST(? AS BIGINT) + CAST(duration_minutes AS BIGINT) * 60000
		 WHERE id = ? AND status = ? AND revoked = ?
		 RETURNING `+grantColumns,
		string(jit.StatusApproved), ms, ms, id, string(jit.StatusPending), false,
	))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return jit.Grant{}, err
	}
	if _, err := s.Grant(ctx, id); err != nil {
		return jit.Grant{}, err
	}
	return jit.Grant{}, jit.ErrNotPending
}

// RejectGrant implements [jit.Store].
func (s *Store) RejectGrant(ctx context.Context, id string) (jit.Grant, error) {
	return scanGrant(s.queryRow(ctx,
		`UPDATE access_grants SET status = ? WHERE id = ? RETURNING `+grantColumns,
		string(jit.StatusRejected), id,
	))
}

// RevokeGrant implements [jit.Store].
func (s *Store) RevokeGrant(ctx context.Context, id string) (jit.Grant, error) {
	return scanGrant(s.queryRow(ctx,
		`UPDATE access_grants SET revoked = ? WHERE id = ? RETURNING `+grantColumns,
		true, id,
	))
}

// RevokeExpired implements [jit.Store].
func (s *Store) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.exec(ctx,
		`UPDATE access_grants SET revoked = ? WHERE revoked = ? AND expires_at > 0 AND expires_at <= ?`,
		true, false, toMillis(now),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err)
	}
	return int(n), nil
}

// CountGrants implements [jit.Store].
func (s *Store) CountGrants(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM access_grants`)
}
