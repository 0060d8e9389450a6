// Package assignment is the §4.8 orchestrator: the single boundary where
// accounts, reps, opportunities, and configuration loaded through
// internal/persistence.Port are turned into proposals via the
// threshold/stability/lpbuilder/solver/waterfall/rationale pipeline, and
// where pure-layer warnings are converted into user-visible outcomes
// (§7: "the orchestrator is the single boundary where throws are
// converted to user-visible failures").
package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/modules/lpbuilder"
	"github.com/aristath/territory-assign/internal/modules/rationale"
	"github.com/aristath/territory-assign/internal/modules/scoring"
	"github.com/aristath/territory-assign/internal/modules/solver"
	"github.com/aristath/territory-assign/internal/modules/stability"
	"github.com/aristath/territory-assign/internal/modules/threshold"
	"github.com/aristath/territory-assign/internal/modules/waterfall"
	"github.com/aristath/territory-assign/internal/persistence"
)

// Scope selects which population generate() runs against.
type Scope string

const (
	ScopeCustomers Scope = "customers"
	ScopeProspects Scope = "prospects"
	ScopeAll       Scope = "all"
)

// overloadVarianceMax is the execute() pre-flight threshold of §4.8: a
// rep whose projected ARR exceeds the mean by more than this fraction
// halts execution unless the caller bypasses the check.
const overloadVarianceMax = 0.30

// Conflict flags one proposal for caller review.
type Conflict struct {
	AccountID string
	Severity  domain.ConflictRisk
	Reason    string
}

// Statistics summarizes one generate() report for the §4.8 dashboard.
type Statistics struct {
	PriorityCounts    map[string]int
	ProjectedARRByRep map[string]float64
}

// Report is generate()'s return value.
type Report struct {
	TotalAccounts      int
	AssignedAccounts   int
	UnassignedAccounts []string
	Proposals          []domain.AssignmentProposal
	Conflicts          []Conflict
	Statistics         Statistics
	Warnings           []string
}

// OverloadWarning is execute()'s pre-flight halt payload.
type OverloadWarning struct {
	RepID            string
	ProjectedARR      float64
	Target            float64
	OverloadPercent   float64
}

// ExecuteResult is execute()'s return value.
type ExecuteResult struct {
	Halted          bool
	Overload        *OverloadWarning
	WrittenAccounts int
}

// Orchestrator wires the pure pipeline packages to a persistence Port and
// an optional event manager. It holds no mutable state of its own beyond
// its collaborators; each Generate/Execute call operates on one immutable
// snapshot loaded at the start of the call (§5).
type Orchestrator struct {
	port    persistence.Port
	solver  *solver.Wrapper
	events  *events.Manager
	cache   persistence.CacheInvalidator
	now     func() time.Time
}

// New builds an Orchestrator. manager and cache may be nil.
func New(port persistence.Port, sv *solver.Wrapper, manager *events.Manager, cache persistence.CacheInvalidator) *Orchestrator {
	return &Orchestrator{port: port, solver: sv, events: manager, cache: cache, now: time.Now}
}

// Generate implements §4.8's generate(scope) operation.
func (o *Orchestrator) Generate(ctx context.Context, buildID string, scope Scope) (Report, error) {
	start := o.now()
	reporter := events.NewProgressReporter(o.events, "assignment")
	o.events.EmitTyped("assignment", &events.RunStartedData{BuildID: buildID, Scope: string(scope)})

	aggregated, err := o.port.ListParentAccounts(ctx, buildID)
	if err != nil {
		return Report{}, fmt.Errorf("loading parent accounts: %w", err)
	}
	plainAccounts := make([]domain.Account, len(aggregated))
	for i, a := range aggregated {
		plainAccounts[i] = a.Account
	}

	opps, err := o.port.ListOpportunities(ctx, buildID, nil)
	if err != nil {
		return Report{}, fmt.Errorf("loading opportunities: %w", err)
	}
	reps, err := o.port.ListReps(ctx, buildID, persistence.RepFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("loading reps: %w", err)
	}
	cfg, err := o.port.LoadConfig(ctx, buildID, "all")
	if err != nil {
		return Report{}, fmt.Errorf("loading configuration: %w", err)
	}

	idx := domain.NewIndex(plainAccounts, reps, opps)
	reporter.Report("index", 1, 1, "built account/rep/opportunity index")

	var warnings []string
	if !cfg.HasLastCalculatedAt {
		thresholds, thWarnings := threshold.Calculate(plainAccounts, reps, opps, cfg)
		warnings = append(warnings, thWarnings...)
		cfg.Thresholds = thresholds
		cfg.HasLastCalculatedAt = true
		cfg.LastCalculatedAt = start
		if err := o.port.SaveConfig(ctx, buildID, "all", cfg); err != nil {
			warnings = append(warnings, "threshold recalibration could not be persisted: "+err.Error())
		}
	}
	reporter.Report("threshold", 1, 1, "capacity thresholds ready")

	locks, _ := stability.ClassifyAll(plainAccounts, idx, cfg, start)
	reporter.Report("lock_classification", 1, 1, "stability locks classified")

	eligibleReps := idx.EligibleReps()
	ownerByID := make(map[string]domain.SalesRep, len(plainAccounts))
	for _, a := range plainAccounts {
		if rep, ok := idx.Reps[a.OwnerID]; ok {
			ownerByID[a.AccountID] = rep
		}
	}
	weights := scoring.Weights{Continuity: cfg.ScoreWeightContinuity, Geography: cfg.ScoreWeightGeography, TeamTier: cfg.ScoreWeightTeamTier}

	full := domain.Aggregate(idx)

	var proposals []domain.AssignmentProposal
	priorityCounts := map[string]int{}
	projectedARR := map[string]float64{}

	runScopedPass := func(accounts []domain.AggregatedAccount, thresholds domain.Thresholds) {
		if len(accounts) == 0 {
			return
		}
		passProposals := o.runPass(ctx, accounts, eligibleReps, locks, ownerByID, reps, thresholds, cfg.TerritoryMappings, weights, reporter)
		proposals = append(proposals, passProposals...)
		for _, p := range passProposals {
			priorityCounts[p.RuleApplied]++
			if acc, ok := idx.Accounts[p.AccountID]; ok {
				projectedARR[p.ProposedOwnerID] += domain.ParseMoney(acc.ARR)
			}
		}
	}

	switch scope {
	case ScopeCustomers:
		runScopedPass(filterByCustomer(full, true), cfg.Thresholds)
	case ScopeProspects:
		runScopedPass(withPipelineValue(filterByCustomer(full, false), idx), prospectThresholds(cfg))
	default: // ScopeAll: customer pass first, prospect pass observes its residual load (§4.8)
		customerAccounts := filterByCustomer(full, true)
		runScopedPass(customerAccounts, cfg.Thresholds)

		residual := deflateThresholdsByUsage(prospectThresholds(cfg), projectedARR, eligibleReps)
		runScopedPass(withPipelineValue(filterByCustomer(full, false), idx), residual)
	}

	unassigned := unassignedAccountIDs(full, proposals)
	conflicts := classifyConflicts(proposals)

	o.events.EmitTyped("assignment", &events.ProposalsReadyData{
		TotalAccounts:      len(full),
		AssignedAccounts:   len(proposals),
		UnassignedAccounts: len(unassigned),
		ConflictCount:      len(conflicts),
	})
	o.events.EmitTyped("assignment", &events.RunCompletedData{BuildID: buildID, Duration: o.now().Sub(start)})

	return Report{
		TotalAccounts:      len(full),
		AssignedAccounts:   len(proposals),
		UnassignedAccounts: unassigned,
		Proposals:          proposals,
		Conflicts:          conflicts,
		Statistics:         Statistics{PriorityCounts: priorityCounts, ProjectedARRByRep: projectedARR},
		Warnings:           warnings,
	}, nil
}

// runPass solves one (customer or prospect) population: locked accounts
// are resolved directly from their stability.Lock, free accounts go
// through the LP/solver pipeline, and fall back to the waterfall
// heuristic when the solver reports anything other than optimal/feasible.
func (o *Orchestrator) runPass(
	ctx context.Context,
	accounts []domain.AggregatedAccount,
	eligibleReps []domain.SalesRep,
	locks map[string]stability.Lock,
	ownerByID map[string]domain.SalesRep,
	reps []domain.SalesRep,
	thresholds domain.Thresholds,
	mappings domain.TerritoryMapping,
	weights scoring.Weights,
	reporter *events.ProgressReporter,
) []domain.AssignmentProposal {
	repsByID := make(map[string]domain.SalesRep, len(reps))
	for _, r := range reps {
		repsByID[r.RepID] = r
	}
	accountsByID := make(map[string]domain.AggregatedAccount, len(accounts))
	for _, a := range accounts {
		accountsByID[a.AccountID] = a
	}

	locked := make(map[string]string)
	for _, a := range accounts {
		if lock := locks[a.AccountID]; lock.IsLocked {
			locked[a.AccountID] = lock.TargetRepID
		}
	}

	scoreLookup := func(accountID, repID string) scoring.Composite {
		account := accountsByID[accountID].Account
		rep := repsByID[repID]
		owner, hasOwner := ownerByID[accountID]
		return scoring.Score(account, rep, owner, hasOwner, mappings, weights)
	}

	problem, diag := lpbuilder.Build(accounts, eligibleReps, locked, thresholds, scoreLookup)
	reporter.Report("lp_build", 1, 1, fmt.Sprintf("%d assignment variables", diag.AssignmentVarCount))

	assigned := make(map[string]string, len(accounts))
	source := make(map[string]string, len(accounts)) // accountID -> "fixed" | "solver" | "waterfall"
	for accID, repID := range problem.FixedAssignments {
		assigned[accID] = repID
		source[accID] = "fixed"
	}

	sol := o.solver.Solve(ctx, problem, diag, len(accounts))
	reporter.Report("solve", 1, 1, fmt.Sprintf("status=%s layer=%s", sol.Status, sol.Layer))

	if sol.Status == solver.StatusOptimal || sol.Status == solver.StatusFeasible {
		for accID, byRep := range sol.Assignments {
			for repID := range byRep {
				assigned[accID] = repID
				source[accID] = "solver"
			}
		}
	} else {
		var freeAccounts []domain.AggregatedAccount
		for _, a := range accounts {
			if _, isLocked := locked[a.AccountID]; !isLocked {
				freeAccounts = append(freeAccounts, a)
			}
		}
		decisions := waterfall.Run(freeAccounts, eligibleReps, locks, ownerByID, thresholds, mappings, weights)
		for _, d := range decisions {
			if d.RepID == "" {
				continue
			}
			assigned[d.AccountID] = d.RepID
			source[d.AccountID] = "waterfall:" + string(d.Priority) + ":" + d.Reason
		}
		reporter.Report("waterfall", 1, 1, "fell back to heuristic priority waterfall")
	}

	proposals := make([]domain.AssignmentProposal, 0, len(accounts))
	for _, a := range accounts {
		repID, ok := assigned[a.AccountID]
		if !ok || repID == "" {
			continue
		}
		rep := repsByID[repID]
		code, details := proposalCode(source[a.AccountID], locks[a.AccountID])
		proposals = append(proposals, domain.AssignmentProposal{
			AccountID:       a.AccountID,
			CurrentOwnerID:  a.OwnerID,
			HasCurrentOwner: a.OwnerID != "",
			ProposedOwnerID: repID,
			RuleApplied:     string(code),
			Rationale:       rationale.Format(code, rep.Name, details),
			ConflictRisk:    conflictSeverity(code, a.OwnerID, repID),
		})
	}

	return proposals
}

// proposalCode derives the rationale code and detail string for one
// resolved account from how it was resolved.
func proposalCode(src string, lock stability.Lock) (rationale.Code, string) {
	switch {
	case src == "fixed":
		if lock.LockType == domain.LockManual {
			return rationale.CodeP0, lock.Reason
		}
		return rationale.CodeP1, lock.Reason
	case src == "solver":
		return rationale.CodeP5, "MIP-optimized assignment within capacity"
	case len(src) > len("waterfall:"):
		rest := src[len("waterfall:"):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == ':' {
				return rationale.Code(rest[:i]), rest[i+1:]
			}
		}
		return rationale.CodeRO, rest
	default:
		return rationale.CodeRO, "residual assignment"
	}
}

func conflictSeverity(code rationale.Code, currentOwnerID, proposedRepID string) domain.ConflictRisk {
	switch code {
	case rationale.CodeP0, rationale.CodeP1, rationale.CodeP2:
		return domain.ConflictLow
	case rationale.CodeP3, rationale.CodeP4:
		return domain.ConflictMedium
	default:
		if currentOwnerID != "" && currentOwnerID != proposedRepID {
			return domain.ConflictHigh
		}
		return domain.ConflictMedium
	}
}

func classifyConflicts(proposals []domain.AssignmentProposal) []Conflict {
	var out []Conflict
	for _, p := range proposals {
		if p.ConflictRisk == domain.ConflictLow {
			continue
		}
		out = append(out, Conflict{AccountID: p.AccountID, Severity: p.ConflictRisk, Reason: p.Rationale})
	}
	return out
}

func filterByCustomer(accounts []domain.AggregatedAccount, customer bool) []domain.AggregatedAccount {
	out := make([]domain.AggregatedAccount, 0, len(accounts))
	for _, a := range accounts {
		if a.IsCustomer == customer {
			out = append(out, a)
		}
	}
	return out
}

func unassignedAccountIDs(accounts []domain.AggregatedAccount, proposals []domain.AssignmentProposal) []string {
	proposed := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		proposed[p.AccountID] = true
	}
	var out []string
	for _, a := range accounts {
		if !proposed[a.AccountID] {
			out = append(out, a.AccountID)
		}
	}
	return out
}

// withPipelineValue substitutes each prospect account's AggregatedARR with
// its summed opportunity net_arr (floored at 0), per §4.8 pt.4: "for
// prospects, the scoring coefficient uses opportunity net_arr (summed per
// account, floor 0) as pipeline value." The subtree (parent + children)
// mirrors the same scope domain.Aggregate used for the ARR it replaces.
func withPipelineValue(accounts []domain.AggregatedAccount, idx *domain.Index) []domain.AggregatedAccount {
	out := make([]domain.AggregatedAccount, len(accounts))
	for i, a := range accounts {
		subtree := append([]string{a.AccountID}, a.ChildIDs...)
		var pipeline float64
		for _, id := range subtree {
			for _, opp := range idx.Opportunities[id] {
				pipeline += opp.NetARR
			}
		}
		if pipeline < 0 {
			pipeline = 0
		}
		a.AggregatedARR = pipeline
		out[i] = a
	}
	return out
}

// prospectThresholds derives the prospect pass's ARR band from
// Configuration.ProspectTargetARR (§4.8 pt.4 names net_arr-driven pipeline
// value as the prospect scoring coefficient; the capacity band mirrors
// the customer band's variance around that separately configured target).
func prospectThresholds(cfg domain.Configuration) domain.Thresholds {
	th := cfg.Thresholds
	if cfg.ProspectTargetARR <= 0 {
		return th
	}
	variance := cfg.CapacityVariancePercent
	if variance <= 0 {
		variance = 0.1
	}
	target := cfg.ProspectTargetARR
	th.ARR = domain.DimensionThreshold{Min: target * (1 - variance), Target: target, Max: target * (1 + variance)}
	return th
}

// deflateThresholdsByUsage approximates "the prospect pass observes rep
// loads updated by the customer pass" (§4.8): since the LP/solver treats
// every pass as an independent, immutable snapshot (§5) rather than a
// stateful per-rep ledger, residual capacity is modeled by shrinking the
// ARR target by the average load the customer pass already placed on
// eligible reps.
func deflateThresholdsByUsage(th domain.Thresholds, usedByRep map[string]float64, eligibleReps []domain.SalesRep) domain.Thresholds {
	if len(eligibleReps) == 0 || th.ARR.Target <= 0 {
		return th
	}
	var total float64
	for _, r := range eligibleReps {
		total += usedByRep[r.RepID]
	}
	avgUsed := total / float64(len(eligibleReps))
	target := th.ARR.Target - avgUsed
	if target < th.ARR.Target*0.1 {
		target = th.ARR.Target * 0.1 // floor so the band never collapses to near-zero
	}
	shrink := target / th.ARR.Target
	th.ARR = domain.DimensionThreshold{Min: th.ARR.Min * shrink, Target: target, Max: th.ARR.Max * shrink}
	return th
}
