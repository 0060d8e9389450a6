package assignment_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/modules/assignment"
	"github.com/aristath/territory-assign/internal/modules/solver"
	"github.com/aristath/territory-assign/internal/persistence/memory"
	"github.com/aristath/territory-assign/internal/testutil"
)

// This exercises the real sqlite persistence.Port adapter end to end,
// complementing assignment_test.go's fakePort-based unit tests with one
// pass through the actual database.
func TestGenerate_AgainstRealSqliteStore(t *testing.T) {
	store, cleanup := testutil.NewTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, store.Seed(ctx, "build1",
		testutil.NewAccountFixtures(),
		testutil.NewSalesRepFixtures(),
		testutil.NewOpportunityFixtures(),
		testutil.NewConfigurationFixture(),
	))

	sv := solver.New(solver.Config{}, nil)
	orch := assignment.New(store, sv, events.NewManager(), memory.NewCache())

	report, err := orch.Generate(ctx, "build1", assignment.ScopeAll)
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalAccounts)
	assert.NotEmpty(t, report.Proposals)
}
