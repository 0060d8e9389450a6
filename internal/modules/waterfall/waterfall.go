// Package waterfall implements the §4.7 priority-ordered greedy fallback,
// used when every solver layer of internal/modules/solver fails or the
// builder's pre-check rejects the problem and the remote service is
// unreachable.
package waterfall

import (
	"sort"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/modules/scoring"
	"github.com/aristath/territory-assign/internal/modules/stability"
)

// Priority is the rationale-carrying code assigned to each decision, in
// the order the greedy pass tries them (§4.7).
type Priority string

const (
	PriorityP0 Priority = "P0" // manual/strategic locks, already fixed by §4.3
	PriorityP1 Priority = "P1" // other stability locks
	PriorityP2 Priority = "P2" // same region AND same current owner
	PriorityP3 Priority = "P3" // same region
	PriorityP4 Priority = "P4" // same current owner
	PriorityP5 Priority = "P5" // best composite score within ±30% capacity
	PriorityRO Priority = "RO" // residual: least-loaded eligible rep
)

// capacityVarianceSoft is the ±30% soft variance §4.7's P5 tier allows
// around the §4.4 capacity target.
const capacityVarianceSoft = 0.30

// Decision is one account's waterfall outcome.
type Decision struct {
	AccountID string
	RepID     string
	Priority  Priority
	Reason    string
}

// RepLoad accumulates a rep's running totals across all balanced
// dimensions as the pass proceeds, so later decisions see realistic
// capacity (§4.7: "each assignment updates a running current load").
type RepLoad struct {
	ARR, ATR       float64
	T1, T2, T3, T4 int
}

func (l *RepLoad) add(a domain.AggregatedAccount) {
	l.ARR += a.AggregatedARR
	l.ATR += a.AggregatedATR
	switch a.EffectiveTier() {
	case domain.TierT1:
		l.T1++
	case domain.TierT2:
		l.T2++
	case domain.TierT3:
		l.T3++
	case domain.TierT4:
		l.T4++
	}
}

// Run executes the full waterfall over accounts (already excluding those
// §4.3 fixed outright), sorted by descending ARR then ascending
// account ID for deterministic tie-breaks (§5). locks carries the
// P0/P1 decisions already made by the stability classifier so their
// rationale and load accounting flow through the same report.
func Run(
	accounts []domain.AggregatedAccount,
	eligibleReps []domain.SalesRep,
	locks map[string]stability.Lock,
	currentOwners map[string]domain.SalesRep, // accountID -> current owner, when known
	thresholds domain.Thresholds,
	mappings domain.TerritoryMapping,
	weights scoring.Weights,
) []Decision {
	sorted := make([]domain.AggregatedAccount, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].AggregatedARR != sorted[j].AggregatedARR {
			return sorted[i].AggregatedARR > sorted[j].AggregatedARR
		}
		return sorted[i].AccountID < sorted[j].AccountID
	})

	loads := make(map[string]*RepLoad, len(eligibleReps))
	for _, r := range eligibleReps {
		loads[r.RepID] = &RepLoad{}
	}

	var decisions []Decision
	for _, a := range sorted {
		d := decide(a, eligibleReps, locks[a.AccountID], currentOwners, loads, thresholds, mappings, weights)
		decisions = append(decisions, d)
		if load, ok := loads[d.RepID]; ok {
			load.add(a)
		}
	}

	return decisions
}

func decide(
	a domain.AggregatedAccount,
	eligibleReps []domain.SalesRep,
	lock stability.Lock,
	currentOwners map[string]domain.SalesRep,
	loads map[string]*RepLoad,
	thresholds domain.Thresholds,
	mappings domain.TerritoryMapping,
	weights scoring.Weights,
) Decision {
	// P0/P1: a stability lock pins this account. Manual/strategic locks are
	// P0, every other lock type is P1; §4.3 already chose the target rep.
	if lock.IsLocked {
		priority := PriorityP1
		if lock.LockType == domain.LockManual {
			priority = PriorityP0
		}
		return Decision{AccountID: a.AccountID, RepID: lock.TargetRepID, Priority: priority, Reason: lock.Reason}
	}

	owner, hasOwner := currentOwners[a.AccountID]

	// P2: same region AND same current owner's continuity.
	if hasOwner {
		if rep, ok := findRep(eligibleReps, owner.RepID); ok {
			if (a.Geo != "" && rep.Region == a.Geo) || (a.SalesTerritory != "" && rep.Region == a.SalesTerritory) {
				return Decision{AccountID: a.AccountID, RepID: rep.RepID, Priority: PriorityP2, Reason: "same region and current owner"}
			}
		}
	}

	// P3: same region (any eligible rep).
	if rep, ok := findRegionMatch(a, eligibleReps, mappings); ok {
		return Decision{AccountID: a.AccountID, RepID: rep.RepID, Priority: PriorityP3, Reason: "same region"}
	}

	// P4: same current owner, regardless of region.
	if hasOwner {
		if rep, ok := findRep(eligibleReps, owner.RepID); ok {
			return Decision{AccountID: a.AccountID, RepID: rep.RepID, Priority: PriorityP4, Reason: "same current owner"}
		}
	}

	// P5: best composite score within ±30% of the ARR capacity target.
	if rep, ok := bestWithinCapacity(a, eligibleReps, owner, hasOwner, loads, thresholds, mappings, weights); ok {
		return Decision{AccountID: a.AccountID, RepID: rep, Priority: PriorityP5, Reason: "best composite score within capacity"}
	}

	// RO: residual, least-loaded eligible rep by ARR.
	rep := leastLoaded(eligibleReps, loads)
	return Decision{AccountID: a.AccountID, RepID: rep, Priority: PriorityRO, Reason: "residual assignment to least-loaded rep"}
}

func findRep(reps []domain.SalesRep, repID string) (domain.SalesRep, bool) {
	for _, r := range reps {
		if r.RepID == repID {
			return r, true
		}
	}
	return domain.SalesRep{}, false
}

func findRegionMatch(a domain.AggregatedAccount, reps []domain.SalesRep, mappings domain.TerritoryMapping) (domain.SalesRep, bool) {
	region := a.Geo
	if mapped, ok := mappings[a.SalesTerritory]; ok {
		region = mapped
	}
	if region == "" && a.SalesTerritory == "" {
		return domain.SalesRep{}, false
	}
	for _, r := range reps {
		if r.Region == "" {
			continue
		}
		if r.Region == region || r.Region == a.SalesTerritory {
			return r, true
		}
	}
	return domain.SalesRep{}, false
}

func bestWithinCapacity(
	a domain.AggregatedAccount,
	reps []domain.SalesRep,
	owner domain.SalesRep,
	hasOwner bool,
	loads map[string]*RepLoad,
	thresholds domain.Thresholds,
	mappings domain.TerritoryMapping,
	weights scoring.Weights,
) (string, bool) {
	bestScore := -1.0
	bestRep := ""
	for _, r := range reps {
		load := loads[r.RepID]
		if load == nil {
			continue
		}
		projectedARR := load.ARR + a.AggregatedARR
		if thresholds.ARR.Target > 0 {
			deviation := (projectedARR - thresholds.ARR.Target) / thresholds.ARR.Target
			if deviation > capacityVarianceSoft {
				continue
			}
		}

		composite := scoring.Score(a.Account, r, owner, hasOwner, mappings, weights)
		if composite.Score > bestScore {
			bestScore = composite.Score
			bestRep = r.RepID
		}
	}
	if bestRep == "" {
		return "", false
	}
	return bestRep, true
}

func leastLoaded(reps []domain.SalesRep, loads map[string]*RepLoad) string {
	best := ""
	bestARR := -1.0
	for _, r := range reps {
		load := loads[r.RepID]
		if load == nil {
			continue
		}
		if bestARR < 0 || load.ARR < bestARR {
			bestARR = load.ARR
			best = r.RepID
		}
	}
	return best
}
