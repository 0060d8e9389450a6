// Package testutil provides shared test fixtures and database helpers
// used across this module's _test.go files, grounded on the teacher's
// internal/testing package.
package testutil

import (
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aristath/territory-assign/internal/persistence/sqlite"
)

// NewTestDB creates a temp-file sqlite database with the schema applied,
// returning a ready-to-use sqlite.Store and an idempotent cleanup
// function. Unlike the in-memory persistence/memory.Store, this exercises
// the real sqlite adapter end to end.
func NewTestDB(t *testing.T) (*sqlite.Store, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "territory_assign_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := sqlite.Open(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := sqlite.Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("failed to migrate test database: %v", err)
	}

	store := sqlite.New(db, zerolog.Nop())
	return store, func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("warning: failed to remove temp database file %s: %v", tmpPath, err)
		}
	}
}
