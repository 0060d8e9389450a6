package solver

import (
	"context"
	"testing"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/modules/lpbuilder"
	"github.com/aristath/territory-assign/internal/modules/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyProblem(t *testing.T) (*lpbuilder.Problem, lpbuilder.Diagnostics) {
	t.Helper()
	accounts := []domain.AggregatedAccount{
		{Account: domain.Account{AccountID: "a1"}, AggregatedARR: 100},
		{Account: domain.Account{AccountID: "a2"}, AggregatedARR: 50},
	}
	reps := []domain.SalesRep{{RepID: "r1"}, {RepID: "r2"}}
	thresholds := domain.Thresholds{
		ARR: domain.DimensionThreshold{Min: 67, Target: 75, Max: 83},
		ATR: domain.DimensionThreshold{Min: 1, Target: 1, Max: 1},
	}
	return lpbuilder.Build(accounts, reps, nil, thresholds, func(accountID, repID string) scoring.Composite {
		if accountID == "a1" && repID == "r1" {
			return scoring.Composite{Score: 1.0}
		}
		if accountID == "a2" && repID == "r2" {
			return scoring.Composite{Score: 1.0}
		}
		return scoring.Composite{Score: 0.1}
	})
}

type stubRemote struct {
	result RemoteResult
	err    error
	calls  int
}

func (s *stubRemote) Solve(ctx context.Context, lpText string) (RemoteResult, error) {
	s.calls++
	return s.result, s.err
}

func TestSolve_RouteBySizeGoesStraightToRemote(t *testing.T) {
	ResetPrimaryStateForTests()
	problem, diag := tinyProblem(t)
	remote := &stubRemote{result: RemoteResult{Status: StatusOptimal, Columns: map[string]float64{"x0_0": 1.0}}}

	w := New(Config{RouteToRemoteAccountCeiling: 1}, remote)
	sol := w.Solve(context.Background(), problem, diag, 5)

	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, "layer0-route-by-size", sol.Layer)
	assert.Equal(t, StatusOptimal, sol.Status)
}

func TestSolve_PreCheckTooLargeSkipsPrimaryStraightToFallback(t *testing.T) {
	ResetPrimaryStateForTests()
	problem, diag := tinyProblem(t)
	diag.TooLarge = true
	remote := &stubRemote{result: RemoteResult{Status: StatusOptimal, Columns: map[string]float64{}}}

	w := New(Config{}, remote)
	sol := w.Solve(context.Background(), problem, diag, 2)

	// The fallback in-process solver handles this trivial problem fine, so
	// remote is never reached; Layer 2 (primary) is what got skipped.
	assert.Equal(t, 0, remote.calls)
	assert.Equal(t, "layer3-fallback", sol.Layer)
}

func TestSolve_PrimarySucceedsWithoutTouchingRemote(t *testing.T) {
	ResetPrimaryStateForTests()
	problem, diag := tinyProblem(t)
	remote := &stubRemote{}

	w := New(Config{}, remote)
	sol := w.Solve(context.Background(), problem, diag, 2)

	assert.Equal(t, 0, remote.calls)
	assert.Equal(t, "layer2-primary", sol.Layer)
	assert.Contains(t, []Status{StatusOptimal, StatusFeasible}, sol.Status)
}

func TestSolve_NoRemoteConfiguredReportsErrorWhenRoutedToRemote(t *testing.T) {
	ResetPrimaryStateForTests()
	problem, diag := tinyProblem(t)

	w := New(Config{RouteToRemoteAccountCeiling: 1}, nil)
	sol := w.Solve(context.Background(), problem, diag, 5) // above the ceiling: Layer 0 routes straight to remote

	assert.Equal(t, StatusError, sol.Status)
	assert.Equal(t, "layer0-route-by-size", sol.Layer)
}

func TestExtractAssignmentsFromColumns_IgnoresSubThresholdValues(t *testing.T) {
	problem, _ := tinyProblem(t)
	columns := map[string]float64{
		"x0_0": 0.9, // a1 -> r1, assigned
		"x1_1": 0.2, // a2 -> r2, below the 0.5 extraction threshold
	}

	assignments, _ := extractAssignmentsFromColumns(problem, columns)
	require.Contains(t, assignments, "a1")
	assert.NotContains(t, assignments, "a2")
}

func TestSolve_TwoConsecutiveFailuresStickyDisablesPrimary(t *testing.T) {
	ResetPrimaryStateForTests()
	defer ResetPrimaryStateForTests()

	globalPrimaryState.consecutiveFailures = 2
	globalPrimaryState.disabled = true

	problem, diag := tinyProblem(t)
	remote := &stubRemote{result: RemoteResult{Status: StatusOptimal, Columns: map[string]float64{}}}

	w := New(Config{}, remote)
	sol := w.Solve(context.Background(), problem, diag, 2)

	assert.NotEqual(t, "layer2-primary", sol.Layer)
}
