package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/persistence"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary sqlite-backed Store with the schema
// applied, and returns a cleanup function that removes the file.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "territory_assign_test_*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := Open(tmpPath)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	store := New(db, zerolog.Nop())
	cleanup := func() {
		_ = db.Close()
		_ = os.Remove(tmpPath)
	}
	return store, cleanup
}

func seedAccount(t *testing.T, store *Store, buildID string, a domain.Account) {
	t.Helper()
	_, err := store.db.Exec(`
		INSERT INTO accounts (build_id, account_id, ultimate_parent_id, arr, hierarchy_arr, owner_id, exclude_from_reassignment)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, buildID, a.AccountID, a.UltimateParentID, a.ARR, a.HierarchyARR, a.OwnerID, boolToInt(a.ExcludeFromReassignment))
	require.NoError(t, err)
}

func seedRep(t *testing.T, store *Store, buildID string, r domain.SalesRep) {
	t.Helper()
	_, err := store.db.Exec(`
		INSERT INTO sales_reps (build_id, rep_id, name, is_active, include_in_assignments)
		VALUES (?, ?, ?, ?, ?)
	`, buildID, r.RepID, r.Name, boolToInt(r.IsActive), boolToInt(r.IncludeInAssignments))
	require.NoError(t, err)
}

func TestListParentAccounts_AggregatesAcrossHierarchy(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedAccount(t, store, "build1", domain.Account{AccountID: "acc1", ARR: 100, HierarchyARR: 100, OwnerID: "repX"})
	seedAccount(t, store, "build1", domain.Account{AccountID: "acc2", UltimateParentID: "acc1", ARR: 50})

	accounts, err := store.ListParentAccounts(context.Background(), "build1")

	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc1", accounts[0].AccountID)
	assert.Equal(t, 150.0, accounts[0].AggregatedARR)
	assert.True(t, accounts[0].IsCustomer)
}

func TestListReps_EligibleOnlyFilter(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	seedRep(t, store, "build1", domain.SalesRep{RepID: "repX", Name: "Rep X", IsActive: true, IncludeInAssignments: true})
	seedRep(t, store, "build1", domain.SalesRep{RepID: "repY", Name: "Rep Y", IsActive: false, IncludeInAssignments: true})

	eligible, err := store.ListReps(context.Background(), "build1", persistence.RepFilter{EligibleOnly: true})

	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "repX", eligible[0].RepID)
}

func TestSaveAndLoadConfig_RoundTripsJSONColumns(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	cfg := domain.Configuration{
		CustomerTargetARR:  200,
		HasLastCalculatedAt: true,
		LastCalculatedAt:   time.Unix(1700000000, 0).UTC(),
		Thresholds:         domain.Thresholds{ARR: domain.DimensionThreshold{Min: 100, Target: 200, Max: 300}},
		TerritoryMappings:  domain.TerritoryMapping{"EMEA-UK": "EMEA"},
	}

	require.NoError(t, store.SaveConfig(context.Background(), "build1", "all", cfg))

	loaded, err := store.LoadConfig(context.Background(), "build1", "all")
	require.NoError(t, err)
	assert.Equal(t, 200.0, loaded.CustomerTargetARR)
	assert.True(t, loaded.HasLastCalculatedAt)
	assert.Equal(t, 200.0, loaded.Thresholds.ARR.Target)
	assert.Equal(t, "EMEA", loaded.TerritoryMappings["EMEA-UK"])
}

func TestUpsertAssignments_OverwritesExistingRow(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.UpsertAssignments(ctx, "build1", []persistence.AssignmentWrite{
		{AccountID: "acc1", Rationale: "P0: locked", PriorityCode: "P0"},
	}))
	require.NoError(t, store.UpsertAssignments(ctx, "build1", []persistence.AssignmentWrite{
		{AccountID: "acc1", Rationale: "P5: best score", PriorityCode: "P5"},
	}))

	var code string
	err := store.db.QueryRow(`SELECT priority_code FROM assignments WHERE build_id = ? AND account_id = ?`, "build1", "acc1").Scan(&code)
	require.NoError(t, err)
	assert.Equal(t, "P5", code)
}

func TestBackfillLifecycle_MigratesOwnership(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	seedAccount(t, store, "build1", domain.Account{AccountID: "acc1", ARR: 100, HierarchyARR: 100, OwnerID: "repX"})
	seedRep(t, store, "build1", domain.SalesRep{RepID: "repX", Name: "Rep X", IsActive: true, IncludeInAssignments: true})

	rep, err := store.CreateBackfillRep(ctx, "build1", "repX")
	require.NoError(t, err)
	assert.True(t, rep.IsBackfillTarget)

	require.NoError(t, store.MigrateToBackfillRep(ctx, "build1", "repX", rep.RepID))
	require.NoError(t, store.SetBackfillSource(ctx, "build1", "repX", true))
	require.NoError(t, store.SetIncludeInAssignments(ctx, "build1", "repX", false))

	accounts, err := store.ListParentAccounts(ctx, "build1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, rep.RepID, accounts[0].OwnerID)

	reps, err := store.ListReps(ctx, "build1", persistence.RepFilter{})
	require.NoError(t, err)
	var leaving domain.SalesRep
	for _, r := range reps {
		if r.RepID == "repX" {
			leaving = r
		}
	}
	assert.True(t, leaving.IsBackfillSource)
	assert.False(t, leaving.IncludeInAssignments)
}

func TestAppendAudit_PersistsEntry(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.AppendAudit(context.Background(), persistence.AuditEntry{
		BuildID: "build1", Action: "BACKFILL_CREATED", RecordID: "repX",
	})
	require.NoError(t, err)

	var count int
	err = store.db.QueryRow(`SELECT COUNT(*) FROM audit_log WHERE build_id = ? AND action = ?`, "build1", "BACKFILL_CREATED").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
