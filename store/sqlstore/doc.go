// Package sqlstore implements the goAccess storage contracts on
// database/sql.
//
// Two dialects are supported: PostgreSQL through the pgx stdlib driver and
// SQLite through modernc.org/sqlite. Queries are written with '?'
// placeholders and rebound for the active dialect. Timestamps are stored
// as Unix milliseconds so both dialects round-trip them identically; zero
// means unset.
//
// Every mutation the contracts require to be atomic is a single statement.
// Call [Store.Migrate] once before use.
package sqlstore
