package memory

import (
	"context"
	"testing"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/persistence"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New(zerolog.Nop())
	s.Seed("build1",
		[]domain.Account{
			{AccountID: "acc1", IsParent: true, IsCustomer: true, ARR: 100, HierarchyARR: 100, OwnerID: "repX"},
			{AccountID: "acc2", UltimateParentID: "acc1", ARR: 20, OwnerID: "repX"},
		},
		[]domain.SalesRep{
			{RepID: "repX", Name: "Rep X", IsActive: true, IncludeInAssignments: true},
			{RepID: "repY", Name: "Rep Y", IsActive: false, IncludeInAssignments: true},
		},
		[]domain.Opportunity{
			{AccountID: "acc1", OwnerID: "repX", OpportunityType: "Renewals", AvailableToRenew: 30},
		},
		domain.Configuration{CustomerTargetARR: 100, HasLastCalculatedAt: true},
	)
	return s
}

func TestListParentAccounts_AggregatesSubtree(t *testing.T) {
	s := seeded(t)

	accounts, err := s.ListParentAccounts(context.Background(), "build1")

	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc1", accounts[0].AccountID)
	assert.Equal(t, 120.0, accounts[0].AggregatedARR)
	assert.Equal(t, 30.0, accounts[0].AggregatedATR)
}

func TestListReps_EligibleOnlyFilter(t *testing.T) {
	s := seeded(t)

	all, err := s.ListReps(context.Background(), "build1", persistence.RepFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	eligible, err := s.ListReps(context.Background(), "build1", persistence.RepFilter{EligibleOnly: true})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "repX", eligible[0].RepID)
}

func TestSaveAndLoadConfig_RoundTrips(t *testing.T) {
	s := New(zerolog.Nop())
	cfg := domain.Configuration{CustomerTargetARR: 250, HasLastCalculatedAt: true}

	err := s.SaveConfig(context.Background(), "build1", "all", cfg)
	require.NoError(t, err)

	loaded, err := s.LoadConfig(context.Background(), "build1", "all")
	require.NoError(t, err)
	assert.Equal(t, 250.0, loaded.CustomerTargetARR)
}

func TestWriteProposedOwners_SetsNewOwnerIDOnAccount(t *testing.T) {
	s := seeded(t)

	err := s.WriteProposedOwners(context.Background(), "build1", []persistence.OwnerWrite{
		{AccountID: "acc1", NewOwnerID: "repY", NewOwnerName: "Rep Y"},
	})
	require.NoError(t, err)

	accounts, err := s.ListParentAccounts(context.Background(), "build1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "repY", accounts[0].NewOwnerID)
}

func TestUpsertAssignments_OverwritesByAccountID(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.UpsertAssignments(context.Background(), "build1", []persistence.AssignmentWrite{
		{AccountID: "acc1", Rationale: "P0: locked", PriorityCode: "P0"},
	})
	require.NoError(t, err)
	err = s.UpsertAssignments(context.Background(), "build1", []persistence.AssignmentWrite{
		{AccountID: "acc1", Rationale: "P5: best score", PriorityCode: "P5"},
	})
	require.NoError(t, err)

	assert.Equal(t, "P5", s.builds["build1"].assigns["acc1"].PriorityCode)
}

func TestBackfillLifecycle_MigratesAccountsAndOpportunities(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	rep, err := s.CreateBackfillRep(ctx, "build1", "repX")
	require.NoError(t, err)
	assert.True(t, rep.IsBackfillTarget)

	require.NoError(t, s.MigrateToBackfillRep(ctx, "build1", "repX", rep.RepID))
	require.NoError(t, s.SetBackfillSource(ctx, "build1", "repX", true))
	require.NoError(t, s.SetIncludeInAssignments(ctx, "build1", "repX", false))

	accounts, err := s.ListParentAccounts(ctx, "build1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, rep.RepID, accounts[0].OwnerID)

	reps, err := s.ListReps(ctx, "build1", persistence.RepFilter{})
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

func TestAppendAudit_RecordsUnderEntryBuildID(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.AppendAudit(context.Background(), persistence.AuditEntry{
		Action: "BACKFILL_CREATED", BuildID: "build1", RecordID: "repX",
	})
	require.NoError(t, err)
	require.Len(t, s.builds["build1"].audits, 1)
	assert.Equal(t, "BACKFILL_CREATED", s.builds["build1"].audits[0].Action)
}

func TestCache_InvalidateRecordsLastKeys(t *testing.T) {
	c := NewCache()
	c.Invalidate("build1", persistence.InvalidationKeys...)
	assert.Equal(t, persistence.InvalidationKeys, c.LastInvalidated())
}
