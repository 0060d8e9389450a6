// Package solver implements the §4.6 layered solver wrapper: route-by-size,
// pre-check, primary in-process MIP, fallback in-process MIP, remote
// solver service, each modeled as an explicit state transition rather than
// exceptions (§9's "avoid exception-driven control flow for expected
// layer transitions").
//
// Grounded on the teacher's internal/modules/optimization/mv_optimizer.go
// (gonum/optimize penalty-method pattern, reused here as the in-process
// relaxation-then-rounding layer) and internal/server/system_handlers.go
// (gopsutil mem reads, reused as the pre-solve memory guard).
package solver

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/aristath/territory-assign/internal/modules/lpbuilder"
	"github.com/shirou/gopsutil/v3/mem"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Status is the terminal state of a solve attempt, per §4.6.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// Solution is the wrapper's normalized result shape, independent of which
// layer produced it.
type Solution struct {
	Status      Status
	Objective   float64
	Assignments map[string]map[string]float64 // accountID -> repID -> value
	SlackValues map[string]float64
	SolveTimeMs int64
	Layer       string
	Error       string
}

// Config tunes the wrapper's routing thresholds; zero values fall back to
// the §4.6 defaults.
type Config struct {
	RouteToRemoteAccountCeiling int     // Layer 0: account count above which remote is used directly (~3000)
	InProcessVarCeiling         int     // Layer 1: variable ceiling shared with lpbuilder's pre-check (~30000)
	RelativeGap                float64 // Layer 2: required MIP relative-gap option (~0.01)
	MaxConsecutiveFailures      int     // sticky-disable threshold (2, per §4.6)
	RemoteTimeout               time.Duration
	MinAvailableMemoryPercent   float64 // below this, skip Layer 2 pre-emptively
}

func (c Config) withDefaults() Config {
	if c.RouteToRemoteAccountCeiling <= 0 {
		c.RouteToRemoteAccountCeiling = 3000
	}
	if c.InProcessVarCeiling <= 0 {
		c.InProcessVarCeiling = 30000
	}
	if c.RelativeGap <= 0 {
		c.RelativeGap = 0.01
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 2
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = 5 * time.Minute
	}
	if c.MinAvailableMemoryPercent <= 0 {
		c.MinAvailableMemoryPercent = 10.0
	}
	return c
}

// RemoteClient is the collaborator for Layer 4, implemented by
// internal/modules/solver/remote.go's HTTP client.
type RemoteClient interface {
	Solve(ctx context.Context, lpText string) (RemoteResult, error)
}

// primaryState is the process-global mutable state §4.6/§9 calls out
// explicitly: the primary solver handle and its sticky failure counter
// must survive across Wrapper instances within one process.
type primaryState struct {
	mu                  sync.Mutex
	consecutiveFailures int
	disabled            bool
}

var globalPrimaryState = &primaryState{}

// ResetPrimaryStateForTests clears the process-global sticky-disable state.
// Exists only so tests don't leak state across cases; production code
// never calls it (the state is meant to persist for the process lifetime).
func ResetPrimaryStateForTests() {
	globalPrimaryState.mu.Lock()
	defer globalPrimaryState.mu.Unlock()
	globalPrimaryState.consecutiveFailures = 0
	globalPrimaryState.disabled = false
}

// Wrapper dispatches a built problem through the five layers of §4.6.
type Wrapper struct {
	cfg    Config
	remote RemoteClient
	state  *primaryState
}

// New builds a Wrapper. remote may be nil if no remote solver service is
// configured; Layer 4 then always reports StatusError.
func New(cfg Config, remote RemoteClient) *Wrapper {
	return &Wrapper{cfg: cfg.withDefaults(), remote: remote, state: globalPrimaryState}
}

// Solve runs the layered dispatch over a built problem. accountCount feeds
// Layer 0's route-by-size decision.
func (w *Wrapper) Solve(ctx context.Context, problem *lpbuilder.Problem, diag lpbuilder.Diagnostics, accountCount int) Solution {
	start := time.Now()

	// Layer 0: route-by-size.
	if accountCount > w.cfg.RouteToRemoteAccountCeiling {
		return w.solveRemote(ctx, problem, start, "layer0-route-by-size")
	}

	// Layer 1: pre-check.
	w.state.mu.Lock()
	skipToFallback := diag.TooLarge || len(problem.VarNames) > w.cfg.InProcessVarCeiling || w.state.disabled
	w.state.mu.Unlock()

	if !skipToFallback && w.memoryPressureHigh() {
		skipToFallback = true
	}

	if skipToFallback {
		return w.solveFallbackThenRemote(ctx, problem, start)
	}

	// Layer 2: primary in-process MIP (relaxation + rounding).
	sol, err := w.solvePrimary(problem)
	if err == nil {
		sol.SolveTimeMs = time.Since(start).Milliseconds()
		sol.Layer = "layer2-primary"
		w.recordSuccess()
		return sol
	}

	w.recordFailure()
	return w.solveFallbackThenRemote(ctx, problem, start)
}

func (w *Wrapper) solveFallbackThenRemote(ctx context.Context, problem *lpbuilder.Problem, start time.Time) Solution {
	// Layer 3: fallback in-process MIP — a second, more memory-tolerant
	// attempt with a looser convergence tolerance.
	sol, err := w.solveFallback(problem)
	if err == nil {
		sol.SolveTimeMs = time.Since(start).Milliseconds()
		sol.Layer = "layer3-fallback"
		return sol
	}

	return w.solveRemote(ctx, problem, start, "layer4-remote")
}

func (w *Wrapper) solveRemote(ctx context.Context, problem *lpbuilder.Problem, start time.Time, layer string) Solution {
	if w.remote == nil {
		return Solution{Status: StatusError, Error: "no remote solver configured", SolveTimeMs: time.Since(start).Milliseconds(), Layer: layer}
	}

	lpText, err := problem.EmitLP()
	if err != nil {
		return Solution{Status: StatusError, Error: err.Error(), SolveTimeMs: time.Since(start).Milliseconds(), Layer: layer}
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.RemoteTimeout)
	defer cancel()

	result, err := w.remote.Solve(ctx, lpText)
	if err != nil {
		return Solution{Status: StatusError, Error: err.Error(), SolveTimeMs: time.Since(start).Milliseconds(), Layer: layer}
	}
	if result.Status == StatusError {
		return Solution{Status: StatusError, Error: result.Error, SolveTimeMs: time.Since(start).Milliseconds(), Layer: layer}
	}

	assignments, slacks := extractAssignmentsFromColumns(problem, result.Columns)
	return Solution{
		Status:      result.Status,
		Objective:   result.Objective,
		Assignments: assignments,
		SlackValues: slacks,
		SolveTimeMs: time.Since(start).Milliseconds(),
		Layer:       layer,
	}
}

// extractAssignmentsFromColumns mirrors extractAssignments for a sparse
// remote-solver column map instead of a dense relaxation vector.
func extractAssignmentsFromColumns(problem *lpbuilder.Problem, columns map[string]float64) (map[string]map[string]float64, map[string]float64) {
	assignments := make(map[string]map[string]float64)
	slacks := make(map[string]float64)

	for name, value := range columns {
		if pair, isAssignment := problem.ReverseAssignmentVar[name]; isAssignment {
			if value < 0.5 {
				continue
			}
			accountID, repID := pair[0], pair[1]
			if assignments[accountID] == nil {
				assignments[accountID] = make(map[string]float64)
			}
			assignments[accountID][repID] = value
			continue
		}
		slacks[name] = value
	}

	return assignments, slacks
}

// memoryPressureHigh reads current available memory (gopsutil, grounded on
// the teacher's system_handlers.go) and treats low availability as a
// pre-emptive trigger for the same "memory abort" routing used when the
// in-process solver itself aborts (§4.6/§7).
func (w *Wrapper) memoryPressureHigh() bool {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return false // can't read memory stats: don't block the attempt on an unrelated failure
	}
	availablePercent := 100 - stat.UsedPercent
	return availablePercent < w.cfg.MinAvailableMemoryPercent
}

func (w *Wrapper) recordFailure() {
	w.state.mu.Lock()
	defer w.state.mu.Unlock()
	w.state.consecutiveFailures++
	if w.state.consecutiveFailures >= w.cfg.MaxConsecutiveFailures {
		w.state.disabled = true
	}
}

func (w *Wrapper) recordSuccess() {
	w.state.mu.Lock()
	defer w.state.mu.Unlock()
	w.state.consecutiveFailures = 0
}

// solvePrimary solves the LP relaxation of problem with gonum/optimize
// (penalty method, mirroring MVOptimizer.optimizeEfficientReturn), then
// keeps, per account, every rep whose relaxed value is at least 0.5 (see
// extractAssignments); no repair step enforces exactly one rep per
// account. This stands in
// for a native MIP solver's Layer 2 (§4.5/SPEC_FULL.md), applying the
// required relative-gap tolerance as a convergence criterion instead of a
// solver-native option.
func (w *Wrapper) solvePrimary(problem *lpbuilder.Problem) (Solution, error) {
	return solveRelaxation(problem, w.cfg.RelativeGap, &optimize.NelderMead{})
}

// solveFallback retries the relaxation with BFGS, which tolerates the
// large Big-M slack ranges that can make Nelder-Mead stall, mirroring the
// teacher's NelderMead-then-BFGS fallback chain in optimizeMinVolatility.
func (w *Wrapper) solveFallback(problem *lpbuilder.Problem) (Solution, error) {
	return solveRelaxation(problem, w.cfg.RelativeGap*5, &optimize.BFGS{})
}

// penaltyWeight mirrors the teacher's constant of the same name and role:
// a large coefficient so constraint violations dominate the objective
// during the continuous relaxation.
const penaltyWeight = 1000.0

func solveRelaxation(problem *lpbuilder.Problem, gapTolerance float64, method optimize.Method) (Solution, error) {
	n := len(problem.VarNames)
	if n == 0 {
		return Solution{Status: StatusInfeasible, Assignments: map[string]map[string]float64{}}, nil
	}

	obj := make([]float64, n)
	for name, coef := range problem.Objective {
		if idx, ok := problem.VarIndex[name]; ok {
			obj[idx] = coef
		}
	}

	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, name := range problem.VarNames {
		b := problem.Bounds[name]
		lower[i] = b.Lower
		if b.NoUpper {
			upper[i] = math.Max(1, b.Lower*10)
		} else {
			upper[i] = b.Upper
		}
	}

	project := func(x []float64) []float64 {
		out := make([]float64, n)
		for i := range x {
			v := x[i]
			if v < lower[i] {
				v = lower[i]
			}
			if v > upper[i] {
				v = upper[i]
			}
			out[i] = v
		}
		return out
	}

	constraintPenalty := func(x []float64) float64 {
		penalty := 0.0
		for _, c := range problem.Constraints {
			sum := 0.0
			for name, coef := range c.Terms {
				if idx, ok := problem.VarIndex[name]; ok {
					sum += coef * x[idx]
				}
			}
			diff := sum - c.RHS
			penalty += penaltyWeight * diff * diff
		}
		return penalty
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			xp := project(x)
			total := 0.0
			for i := range xp {
				total -= obj[i] * xp[i] // maximize => minimize negative
			}
			total += constraintPenalty(xp)
			return total
		},
	}
	// BFGS (Layer 3) requires a gradient; a finite-difference one serves it.
	p.Grad = func(grad, x []float64) {
		fd.Gradient(grad, p.Func, x, nil)
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = (lower[i] + math.Min(upper[i], lower[i]+1)) / 2
	}

	// §4.6 requires passing the option controlling relative gap; without it
	// the Big-M-laden relaxation fails to terminate cleanly. gonum's nearest
	// analogue is FunctionConverge.Relative.
	settings := &optimize.Settings{
		FunctionConverge: &optimize.FunctionConverge{Relative: gapTolerance, Iterations: 200},
	}

	result, err := optimize.Minimize(p, initial, settings, method)
	if err != nil {
		return Solution{}, err
	}

	relaxed := project(result.X)
	assignments, slacks := extractAssignments(problem, relaxed)

	objectiveValue := 0.0
	for i := range relaxed {
		objectiveValue += obj[i] * relaxed[i]
	}

	status := StatusFeasible
	if result.Status == optimize.Success || result.Status == optimize.FunctionConvergence {
		status = StatusOptimal
	}

	return Solution{
		Status:      status,
		Objective:   objectiveValue,
		Assignments: assignments,
		SlackValues: slacks,
	}, nil
}

// extractAssignments implements §4.6's extraction rule: for each account,
// the rep whose binary variable is >= 0.5. Accounts with no such rep are
// simply absent from the returned map; the orchestrator decides how to
// handle them.
func extractAssignments(problem *lpbuilder.Problem, x []float64) (map[string]map[string]float64, map[string]float64) {
	assignments := make(map[string]map[string]float64)
	slacks := make(map[string]float64)

	for name, pair := range problem.ReverseAssignmentVar {
		idx, ok := problem.VarIndex[name]
		if !ok {
			continue
		}
		value := x[idx]
		if value < 0.5 {
			continue
		}
		accountID, repID := pair[0], pair[1]
		if assignments[accountID] == nil {
			assignments[accountID] = make(map[string]float64)
		}
		assignments[accountID][repID] = value
	}

	for name := range problem.Bounds {
		if _, isAssignment := problem.ReverseAssignmentVar[name]; isAssignment {
			continue
		}
		if idx, ok := problem.VarIndex[name]; ok {
			slacks[name] = x[idx]
		}
	}

	return assignments, slacks
}
