// Package lpbuilder translates a scoped account/rep population plus balance
// targets into a mixed-integer linear program with a three-tier Big-M
// soft-balance formulation, per §4.5 — the hardest component of this module.
//
// Grounded on the teacher's gonum-based optimization package
// (internal/modules/optimization/mv_optimizer.go) for the "assemble a
// numeric problem, validate coefficient magnitudes, hand it to a solver"
// shape, generalized from a continuous mean-variance problem to a discrete
// assignment MIP.
package lpbuilder

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/modules/scoring"
	"gonum.org/v1/gonum/mat"
)

// Dimension identifies one of the six balanced load dimensions.
type Dimension string

const (
	DimARR Dimension = "ARR"
	DimATR Dimension = "ATR"
	DimT1  Dimension = "T1"
	DimT2  Dimension = "T2"
	DimT3  Dimension = "T3"
	DimT4  Dimension = "T4"
)

// Dimensions is the fixed order the builder iterates balanced dimensions in;
// it also determines the numeric suffix used in slack variable names.
var Dimensions = []Dimension{DimARR, DimATR, DimT1, DimT2, DimT3, DimT4}

// bufferMultiplier scales a dimension's configured variance into the wider
// second-tier (β) slack band, per §4.5's "inside a larger buffer".
const bufferMultiplier = 5.0

// Big-M schedule: penalty coefficients stay in the 10⁻³…10⁻¹ range (§4.5)
// regardless of target magnitude, since targets are already normalized.
const (
	alphaPenalty = 0.001
	betaPenalty  = 0.01
	mPenalty     = 0.1
)

// assignmentVarCeiling and serializedSizeCeilingBytes are the §4.5 pre-check
// size limits that route a problem away from the in-process solver.
const (
	assignmentVarCeiling    = 30000
	serializedSizeCeilingBytes = 5 * 1024 * 1024
)

// Sense is a linear constraint's relational operator.
type Sense string

const (
	SenseEqual        Sense = "="
	SenseLessEqual    Sense = "<="
	SenseGreaterEqual Sense = ">="
)

// Constraint is one row of the problem: a sparse linear combination of
// variables related to a right-hand side by Sense.
type Constraint struct {
	Name  string
	Terms map[string]float64 // variable name -> coefficient
	Sense Sense
	RHS   float64
}

// Bound is a variable's [Lower, Upper] box constraint. Unbounded reports
// NoUpper so the emitter renders "var >= Lower" instead of a closed range.
type Bound struct {
	Lower   float64
	Upper   float64
	NoUpper bool
}

// Problem is the fully assembled MIP, ready for gonum-matrix validation and
// LP-text emission.
type Problem struct {
	// VarNames is the canonical variable order; VarIndex is its inverse.
	VarNames []string
	VarIndex map[string]int

	// AssignmentVar maps (accountID, repID) to its compact variable name;
	// ReverseAssignmentVar is its inverse, used by the solver's extraction
	// step to translate solved columns back into (account, rep) pairs.
	AssignmentVar        map[[2]string]string
	ReverseAssignmentVar map[string][2]string

	Objective   map[string]float64 // variable name -> objective coefficient
	Constraints []Constraint
	Bounds      map[string]Bound
	BinaryVars  []string

	// FixedAssignments are accounts §4.3 already pinned; they never enter
	// the LP as variables (§4.5: "excluded from the problem").
	FixedAssignments map[string]string // accountID -> repID

	AccountOrder []string // stable account order, for account{Idx} naming
	RepOrder     []string // stable rep order, for rep{Idx} naming
}

// Diagnostics reports the pre-check size verdict of §4.5 plus coefficient
// validation warnings collected while assembling the constraint matrix.
type Diagnostics struct {
	AssignmentVarCount  int
	ConstraintCount     int
	ApproxSerializedSize int
	TooLarge            bool
	TooLargeReason      string
	Warnings            []string
}

// ScoreLookup resolves the (account, rep) composite score used in the
// objective. Callers build this from scoring.Score results.
type ScoreLookup func(accountID, repID string) scoring.Composite

// Build assembles a Problem over the scoped accounts against eligibleReps.
// locked accounts are excluded from the LP entirely (§4.5) and returned via
// Problem.FixedAssignments instead. thresholds supplies the per-rep target
// for each balanced dimension; scores supplies the (account, rep) affinity
// used in the objective.
func Build(
	accounts []domain.AggregatedAccount,
	eligibleReps []domain.SalesRep,
	locked map[string]string, // accountID -> targetRepID, already classified by stability.Classify
	thresholds domain.Thresholds,
	scores ScoreLookup,
) (*Problem, Diagnostics) {
	p := &Problem{
		VarIndex:             make(map[string]int),
		AssignmentVar:        make(map[[2]string]string),
		ReverseAssignmentVar: make(map[string][2]string),
		Objective:            make(map[string]float64),
		Bounds:               make(map[string]Bound),
		FixedAssignments:     make(map[string]string),
	}

	var diag Diagnostics
	var freeAccounts []domain.AggregatedAccount
	for _, a := range accounts {
		if target, ok := locked[a.AccountID]; ok {
			p.FixedAssignments[a.AccountID] = target
			continue
		}
		freeAccounts = append(freeAccounts, a)
	}

	sort.Slice(freeAccounts, func(i, j int) bool { return freeAccounts[i].AccountID < freeAccounts[j].AccountID })
	repsSorted := make([]domain.SalesRep, len(eligibleReps))
	copy(repsSorted, eligibleReps)
	sort.Slice(repsSorted, func(i, j int) bool { return repsSorted[i].RepID < repsSorted[j].RepID })

	for _, a := range freeAccounts {
		p.AccountOrder = append(p.AccountOrder, a.AccountID)
	}
	for _, r := range repsSorted {
		p.RepOrder = append(p.RepOrder, r.RepID)
	}

	// Binary assignment variables x{accountIdx}_{repIdx}.
	for ai, a := range freeAccounts {
		for ri, r := range repsSorted {
			name := fmt.Sprintf("x%d_%d", ai, ri)
			p.addVar(name)
			p.AssignmentVar[[2]string{a.AccountID, r.RepID}] = name
			p.ReverseAssignmentVar[name] = [2]string{a.AccountID, r.RepID}
			p.Bounds[name] = Bound{Lower: 0, Upper: 1}
			p.BinaryVars = append(p.BinaryVars, name)

			composite := scores(a.AccountID, r.RepID)
			if coef := clampCoefficient(composite.Score, &diag.Warnings); coef != 0 {
				p.Objective[name] = coef
			}
		}
	}

	// Constraint 1: assignment — every free account assigned exactly once.
	for ai, a := range freeAccounts {
		c := Constraint{Name: fmt.Sprintf("assign_%d", ai), Terms: make(map[string]float64), Sense: SenseEqual, RHS: 1}
		for ri := range repsSorted {
			c.Terms[fmt.Sprintf("x%d_%d", ai, ri)] = 1
		}
		p.Constraints = append(p.Constraints, c)
	}

	// Constraint 2+3: balance decomposition + slack bounds, per (dimension, rep).
	for di, d := range Dimensions {
		target, variance := dimensionTarget(d, thresholds)
		for ri := range repsSorted {
			over, under := p.addSlackVars(di, ri, variance)

			c := Constraint{Name: fmt.Sprintf("balance_%s_%d", d, ri), Terms: make(map[string]float64), Sense: SenseEqual, RHS: 1}
			for ai, a := range freeAccounts {
				raw := dimensionValue(d, a)
				coef := normalizedCoef(raw, target, &diag.Warnings)
				if coef == 0 {
					continue
				}
				c.Terms[fmt.Sprintf("x%d_%d", ai, ri)] = coef
			}
			c.Terms[over.alpha] = -1
			c.Terms[under.alpha] = 1
			c.Terms[over.beta] = -1
			c.Terms[under.beta] = 1
			c.Terms[over.m] = -1
			c.Terms[under.m] = 1

			p.Constraints = append(p.Constraints, c)

			p.Objective[over.alpha] -= alphaPenalty
			p.Objective[under.alpha] -= alphaPenalty
			p.Objective[over.beta] -= betaPenalty
			p.Objective[under.beta] -= betaPenalty
			p.Objective[over.m] -= mPenalty
			p.Objective[under.m] -= mPenalty
		}
	}

	diag.AssignmentVarCount = len(freeAccounts) * len(repsSorted)
	diag.ConstraintCount = len(p.Constraints)
	diag.ApproxSerializedSize = approxSerializedSize(p)

	if diag.AssignmentVarCount > assignmentVarCeiling {
		diag.TooLarge = true
		diag.TooLargeReason = fmt.Sprintf("assignment variable count %d exceeds ceiling %d", diag.AssignmentVarCount, assignmentVarCeiling)
	} else if diag.ApproxSerializedSize > serializedSizeCeilingBytes {
		diag.TooLarge = true
		diag.TooLargeReason = fmt.Sprintf("approximate serialized size %d bytes exceeds ceiling %d", diag.ApproxSerializedSize, serializedSizeCeilingBytes)
	}

	return p, diag
}

type slackPair struct {
	alpha string
	beta  string
	m     string
}

// addSlackVars creates the six slack variables for one (dimension, rep)
// pair, with bounds per §4.5: alpha/beta bounded by variance and buffer,
// M unbounded above.
func (p *Problem) addSlackVars(dimIdx, repIdx int, variance float64) (slackPair, slackPair) {
	buffer := variance * bufferMultiplier

	over := slackPair{
		alpha: fmt.Sprintf("so%d_%d", dimIdx, repIdx),
		beta:  fmt.Sprintf("bo%d_%d", dimIdx, repIdx),
		m:     fmt.Sprintf("mo%d_%d", dimIdx, repIdx),
	}
	under := slackPair{
		alpha: fmt.Sprintf("su%d_%d", dimIdx, repIdx),
		beta:  fmt.Sprintf("bu%d_%d", dimIdx, repIdx),
		m:     fmt.Sprintf("mu%d_%d", dimIdx, repIdx),
	}

	for _, name := range []string{over.alpha, under.alpha} {
		p.addVar(name)
		p.Bounds[name] = Bound{Lower: 0, Upper: variance}
	}
	for _, name := range []string{over.beta, under.beta} {
		p.addVar(name)
		p.Bounds[name] = Bound{Lower: 0, Upper: buffer}
	}
	for _, name := range []string{over.m, under.m} {
		p.addVar(name)
		p.Bounds[name] = Bound{Lower: 0, NoUpper: true}
	}

	return over, under
}

func (p *Problem) addVar(name string) {
	if _, exists := p.VarIndex[name]; exists {
		return
	}
	p.VarIndex[name] = len(p.VarNames)
	p.VarNames = append(p.VarNames, name)
}

// dimensionTarget resolves the per-rep target and variance fraction for d
// from the calculated Thresholds (§4.4's output feeds §4.5 directly).
func dimensionTarget(d Dimension, t domain.Thresholds) (target, variance float64) {
	var dt domain.DimensionThreshold
	switch d {
	case DimARR:
		dt = t.ARR
	case DimATR:
		dt = t.ATR
	case DimT1:
		dt = t.T1Count
	case DimT2:
		dt = t.T2Count
	case DimT3:
		dt = t.T3Count
	case DimT4:
		dt = t.T4Count
	}
	if dt.Target == 0 {
		return 1, 0.1 // degenerate target: avoid division by zero, keep a default band
	}
	return dt.Target, (dt.Max - dt.Target) / dt.Target
}

// dimensionValue returns account a's raw contribution to dimension d: the
// monetary value for ARR/ATR, or a 0/1 tier-match indicator for T1-T4.
func dimensionValue(d Dimension, a domain.AggregatedAccount) float64 {
	switch d {
	case DimARR:
		return a.AggregatedARR
	case DimATR:
		return a.AggregatedATR
	case DimT1:
		return tierIndicator(a, domain.TierT1)
	case DimT2:
		return tierIndicator(a, domain.TierT2)
	case DimT3:
		return tierIndicator(a, domain.TierT3)
	case DimT4:
		return tierIndicator(a, domain.TierT4)
	}
	return 0
}

func tierIndicator(a domain.AggregatedAccount, tier domain.Tier) float64 {
	if a.EffectiveTier() == tier {
		return 1
	}
	return 0
}

// normalizedCoef divides raw by target so every balance constraint's
// coefficients sit near [0, ~2] regardless of the dimension's native
// magnitude (§4.5/§9: the 10³ discipline that prevents the native solver's
// WASM build from aborting on wide coefficient spans).
func normalizedCoef(raw, target float64, warnings *[]string) float64 {
	if target == 0 {
		return 0
	}
	return clampCoefficient(raw/target, warnings)
}

// clampCoefficient enforces §4.5's coefficient hygiene: drop sub-epsilon
// values, zero out non-finite values (counting a warning), clamp large
// magnitudes.
func clampCoefficient(v float64, warnings *[]string) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		*warnings = append(*warnings, "non-finite coefficient replaced with 0")
		return 0
	}
	if math.Abs(v) < 1e-10 {
		return 0
	}
	if math.Abs(v) > 1e15 {
		*warnings = append(*warnings, "coefficient magnitude clamped to 1e15")
		if v > 0 {
			return 1e15
		}
		return -1e15
	}
	return v
}

// approxSerializedSize estimates the LP text's byte size without fully
// emitting it, for the §4.5 pre-check. Each term is budgeted ~20 bytes
// ("+1.234567e+00 x123_45 "), which is a deliberate over-estimate so the
// pre-check errs toward routing away from the in-process solver rather
// than under-counting a problem that will blow past the real ceiling.
func approxSerializedSize(p *Problem) int {
	const bytesPerTerm = 20
	total := 0
	for _, c := range p.Constraints {
		total += len(c.Terms) * bytesPerTerm
	}
	total += len(p.Objective) * bytesPerTerm
	return total
}

// ConstraintMatrix assembles the constraint coefficients into a dense
// gonum matrix for magnitude validation (mat.Norm / min-max scans), per
// SPEC_FULL.md's gonum/mat wiring. Intended for diagnostics, not for
// feeding the solver layers directly — those consume the LP text.
func (p *Problem) ConstraintMatrix() *mat.Dense {
	rows := len(p.Constraints)
	cols := len(p.VarNames)
	m := mat.NewDense(rows, cols, nil)
	for i, c := range p.Constraints {
		for name, coef := range c.Terms {
			if j, ok := p.VarIndex[name]; ok {
				m.Set(i, j, coef)
			}
		}
	}
	return m
}
