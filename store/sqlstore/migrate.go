package sqlstore

import (
	"context"
	"fmt"
)

// Both dialects accept the same DDL apart from the boolean default.
func (s *Store) schema() []string {
	falseLit := "FALSE"
	if s.dialect == SQLite {
		falseLit = "0"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			email_key TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			email_verified BOOLEAN NOT NULL DEFAULT ` + falseLit + `,
			blocked BOOLEAN NOT NULL DEFAULT ` + falseLit + `,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS role_assignments (
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			assigned_at BIGINT NOT NULL,
			PRIMARY KEY (user_id, role)
		)`,
		`CREATE TABLE IF NOT EXISTS access_grants (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT ` + falseLit + `,
			requested_at BIGINT NOT NULL,
			granted_at BIGINT NOT NULL DEFAULT 0,
			expires_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_grants_subject ON access_grants(user_id, resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_access_grants_expiry ON access_grants(revoked, expires_at)`,
	}
}

// Migrate creates the schema if it does not exist. It is safe to run on
// every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
