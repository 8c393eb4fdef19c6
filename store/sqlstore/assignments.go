package sqlstore

import (
	"context"

	"github.com/MrEthical07/goAccess/store"
)

// AssignRole implements [store.AssignmentStore].
func (s *Store) AssignRole(ctx context.Context, a store.Assignment) (bool, error) {
	res, err := s.exec(ctx,
		`INSERT INTO role_assignments (user_id, role, assigned_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, role) DO NOTHING`,
		a.UserID, a.Role, toMillis(a.AssignedAt),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

// RemoveRole implements [store.AssignmentStore].
func (s *Store) RemoveRole(ctx context.Context, userID, role string) error {
	_, err := s.exec(ctx, `DELETE FROM role_assignments WHERE user_id = ? AND role = ?`, userID, role)
	return err
}

// Assignments implements [store.AssignmentStore].
func (s *Store) Assignments(ctx context.Context, userID string) ([]store.Assignment, error) {
	rows, err := s.query(ctx,
		`SELECT user_id, role, assigned_at FROM role_assignments WHERE user_id = ? ORDER BY assigned_at, role`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Assignment
	for rows.Next() {
		var (
			a  store.Assignment
			at int64
		)
		if err := rows.Scan(&a.UserID, &a.Role, &at); err != nil {
			return nil, mapErr(err)
		}
		a.AssignedAt = fromMillis(at)
		out = append(out, a)
	}
	return out, mapErr(rows.Err())
}
