// Package sqlite is the durable persistence.Port reference adapter, a
// single modernc.org/sqlite-backed database holding every buildID's
// accounts, reps, opportunities, configuration, assignments, and audit
// trail.
//
// Grounded on the teacher's internal/database/db.go (pure-Go sqlite
// driver, WAL + foreign_keys PRAGMAs baked into the connection string,
// connection-pool tuning) and
// internal/modules/planning/repository/{config_repository,dismissed_filter_repository}.go
// (one repository struct per concern, *sql.DB + zerolog.Logger fields,
// fmt.Errorf-wrapped query errors).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Open creates (or attaches to) the sqlite database at path with the
// PRAGMAs the teacher applies to every profile: WAL journaling and
// foreign-key enforcement. Unlike the teacher's multi-profile
// buildConnectionString, this adapter only ever runs one profile — a
// single always-durable assignment-engine database, not a
// ledger/cache split.
func Open(path string) (*sql.DB, error) {
	connStr := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging sqlite database %s: %w", path, err)
	}

	return db, nil
}

// Migrate applies the schema. Safe to call on every startup: every
// statement is CREATE TABLE/INDEX IF NOT EXISTS.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
