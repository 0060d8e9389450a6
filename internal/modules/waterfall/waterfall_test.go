package waterfall

import (
	"testing"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/modules/scoring"
	"github.com/aristath/territory-assign/internal/modules/stability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acc(id string, arr float64, region string) domain.AggregatedAccount {
	return domain.AggregatedAccount{
		Account:       domain.Account{AccountID: id, Geo: region, SalesTerritory: region, IsParent: true},
		AggregatedARR: arr,
	}
}

func rep(id, region string) domain.SalesRep {
	return domain.SalesRep{RepID: id, Region: region, IsActive: true, IncludeInAssignments: true}
}

func thresholds() domain.Thresholds {
	return domain.Thresholds{
		ARR: domain.DimensionThreshold{Min: 50, Target: 100, Max: 150},
		ATR: domain.DimensionThreshold{Min: 1, Target: 1, Max: 1},
	}
}

func TestRun_ManualLockIsP0(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 500, "NA-East")}
	reps := []domain.SalesRep{rep("r1", "NA-East"), rep("r2", "NA-West")}
	locks := map[string]stability.Lock{
		"a1": {IsLocked: true, LockType: domain.LockManual, TargetRepID: "r2", Reason: "manual override"},
	}

	decisions := Run(accounts, reps, locks, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityP0, decisions[0].Priority)
	assert.Equal(t, "r2", decisions[0].RepID)
}

func TestRun_OtherLockIsP1(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 500, "NA-East")}
	reps := []domain.SalesRep{rep("r1", "NA-East")}
	locks := map[string]stability.Lock{
		"a1": {IsLocked: true, LockType: domain.LockRenewalSoon, TargetRepID: "r1", Reason: "renewal in window"},
	}

	decisions := Run(accounts, reps, locks, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityP1, decisions[0].Priority)
}

func TestRun_SameRegionAndOwnerIsP2(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 10, "NA-East")}
	reps := []domain.SalesRep{rep("r1", "NA-East"), rep("r2", "NA-West")}
	owners := map[string]domain.SalesRep{"a1": reps[0]}

	decisions := Run(accounts, reps, nil, owners, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityP2, decisions[0].Priority)
	assert.Equal(t, "r1", decisions[0].RepID)
}

func TestRun_SameRegionOnlyIsP3(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 10, "NA-West")}
	reps := []domain.SalesRep{rep("r1", "NA-East"), rep("r2", "NA-West")}

	decisions := Run(accounts, reps, nil, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityP3, decisions[0].Priority)
	assert.Equal(t, "r2", decisions[0].RepID)
}

func TestRun_SameOwnerDifferentRegionIsP4(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 10, "APAC-North")}
	reps := []domain.SalesRep{rep("r1", "NA-East")}
	owners := map[string]domain.SalesRep{"a1": reps[0]}

	decisions := Run(accounts, reps, nil, owners, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityP4, decisions[0].Priority)
	assert.Equal(t, "r1", decisions[0].RepID)
}

func TestRun_NoRegionOrOwnerMatchFallsToP5(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 10, "")}
	reps := []domain.SalesRep{rep("r1", ""), rep("r2", "")}

	decisions := Run(accounts, reps, nil, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityP5, decisions[0].Priority)
}

func TestRun_OverCapacityP5CandidatesFallToResidual(t *testing.T) {
	accounts := []domain.AggregatedAccount{acc("a1", 1000, "")}
	reps := []domain.SalesRep{rep("r1", ""), rep("r2", "")}

	decisions := Run(accounts, reps, nil, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 1)
	assert.Equal(t, PriorityRO, decisions[0].Priority)
}

func TestRun_RunningLoadAffectsLaterDecisions(t *testing.T) {
	// Both accounts have no region/owner signal, forcing P5/RO tie-breaks to
	// depend on running load; the first assignment should load whichever rep
	// it lands on, nudging the second toward the other rep once near
	// capacity.
	accounts := []domain.AggregatedAccount{
		acc("a1", 90, ""),
		acc("a2", 90, ""),
	}
	reps := []domain.SalesRep{rep("r1", ""), rep("r2", "")}

	decisions := Run(accounts, reps, nil, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 2)
	assert.NotEqual(t, decisions[0].RepID, decisions[1].RepID)
}

func TestRun_SortsByDescendingARRThenAccountID(t *testing.T) {
	accounts := []domain.AggregatedAccount{
		acc("b", 50, "NA-East"),
		acc("a", 50, "NA-East"),
		acc("c", 500, "NA-East"),
	}
	reps := []domain.SalesRep{rep("r1", "NA-East")}

	decisions := Run(accounts, reps, nil, nil, thresholds(), nil, scoring.DefaultWeights)

	require.Len(t, decisions, 3)
	assert.Equal(t, "c", decisions[0].AccountID)
	assert.Equal(t, "a", decisions[1].AccountID)
	assert.Equal(t, "b", decisions[2].AccountID)
}
