// Package domain holds the account/rep/opportunity/configuration model shared
// by every module in the assignment engine.
package domain

import "time"

// Tier is an account segmentation label derived from expansion or
// initial-sale tier. Invalid/unknown input normalizes to TierNone rather
// than propagating a free-text string through the pipeline.
type Tier string

const (
	TierT1   Tier = "T1"
	TierT2   Tier = "T2"
	TierT3   Tier = "T3"
	TierT4   Tier = "T4"
	TierNone Tier = ""
)

// LockType identifies which stability rule pinned an account to its current
// owner. The zero value means "not locked".
type LockType string

const (
	LockNone              LockType = ""
	LockManual             LockType = "manual_lock"
	LockBackfillMigration  LockType = "backfill_migration"
	LockCRERisk            LockType = "cre_risk"
	LockRenewalSoon        LockType = "renewal_soon"
	LockPEFirm             LockType = "pe_firm"
	LockRecentChange       LockType = "recent_change"
)

// ConflictRisk classifies how risky a proposed assignment is for downstream
// review.
type ConflictRisk string

const (
	ConflictLow    ConflictRisk = "low"
	ConflictMedium ConflictRisk = "medium"
	ConflictHigh   ConflictRisk = "high"
)

// Account is a customer or prospect record. Optional numeric fields carry a
// Has* flag beside the value so "absent" and "zero" are distinguishable at
// the boundary; every
// downstream consumer goes through ParseMoney/ParseCount instead of relying
// on Go's zero-value truthiness.
type Account struct {
	AccountID         string
	UltimateParentID  string // blank => this account IS a parent
	IsParent          bool   // derived: UltimateParentID == ""

	ARR             float64
	ATR             float64
	PipelineValue   float64
	HierarchyARR    float64 // hierarchy_arr, drives IsCustomer
	IsCustomer      bool    // derived: HierarchyARR > 0

	HierarchyBookingsARRConverted    float64
	HasHierarchyBookingsARRConverted bool
	CalculatedARR                    float64
	HasCalculatedARR                 bool

	ExpansionTier    Tier
	InitialSaleTier  Tier
	Tier             Tier // derived: ExpansionTier || InitialSaleTier
	Geo              string
	SalesTerritory   string
	EmployeeCount    int
	EnterpriseOrCommercial string
	Industry         string
	PEFirm           string

	OwnerID                 string
	NewOwnerID              string
	OwnerChangeDate         time.Time
	OwnersLifetime          int
	ExcludeFromReassignment bool

	CRECount     int
	CRERisk      bool
	RenewalDate  time.Time
	HasRenewalDate bool

	ChildIDs []string
}

// EffectiveTier returns ExpansionTier if set, else InitialSaleTier.
func (a Account) EffectiveTier() Tier {
	if a.ExpansionTier != TierNone {
		return a.ExpansionTier
	}
	return a.InitialSaleTier
}

// SalesRep is a territory owner eligible (or not) to receive assignments.
type SalesRep struct {
	RepID  string
	Name   string
	Region string
	TeamTier string
	FLM    string // first-line manager
	SLM    string // second-line manager
	PEFirms []string

	IsActive            bool
	IncludeInAssignments bool
	IsManager           bool
	IsStrategicRep      bool
	IsBackfillSource    bool
	IsBackfillTarget    bool
	BackfillTargetRepID string
}

// Eligible reports whether this rep can receive new assignments per §4.4.
func (r SalesRep) Eligible() bool {
	return r.IsActive && r.IncludeInAssignments && !r.IsManager && !r.IsBackfillSource
}

// ManagerChain returns the FLM/SLM ids for continuity-scoring comparisons.
func (r SalesRep) ManagerChain() []string {
	out := make([]string, 0, 2)
	if r.FLM != "" {
		out = append(out, r.FLM)
	}
	if r.SLM != "" {
		out = append(out, r.SLM)
	}
	return out
}

// NormalizedRenewals is the literal opportunity_type string that counts
// toward ATR. Comparison is case-insensitive and trims whitespace; no other
// spelling ("Renewal" singular, "renewals " with trailing space is fine
// after normalization, "New Subscription", "Expansion") counts.
const NormalizedRenewals = "renewals"

// Opportunity is a pipeline or renewal record against an account.
type Opportunity struct {
	AccountID         string
	OwnerID           string
	NewOwnerID        string
	OpportunityType   string // raw, pre-normalization
	AvailableToRenew  float64
	NetARR            float64
	Amount            float64
	RenewalEventDate  time.Time
	HasRenewalEventDate bool
	CloseDate         time.Time
	CREStatus         string
}

// NormalizedType lowercases and trims OpportunityType for comparisons.
func (o Opportunity) NormalizedType() string {
	return normalizeType(o.OpportunityType)
}

// CountsTowardATR reports whether this opportunity's normalized type is
// exactly "renewals" (§3 invariant: no other type contributes).
func (o Opportunity) CountsTowardATR() bool {
	return o.NormalizedType() == NormalizedRenewals
}

// DimensionThreshold is a (min, target, max) triple for one balanced
// dimension, derived by the threshold calculator.
type DimensionThreshold struct {
	Min    float64
	Target float64
	Max    float64
}

// QuarterlyTargets holds the fiscal-quarter renewal-count targets Q1-Q4.
type QuarterlyTargets struct {
	Q1, Q2, Q3, Q4 DimensionThreshold
}

// Thresholds is the full set of per-rep balance targets derived by §4.4.
type Thresholds struct {
	ARR       DimensionThreshold
	ATR       DimensionThreshold
	T1Count   DimensionThreshold
	T2Count   DimensionThreshold
	T3Count   DimensionThreshold
	T4Count   DimensionThreshold
	Quarterly QuarterlyTargets
}

// TerritoryMapping is a partial function territory string -> region.
type TerritoryMapping map[string]string

// LPStabilityConfig overrides stability-lock thresholds.
type LPStabilityConfig struct {
	CREThreshold          int
	RenewalWindowDays     int
	RecentChangeWindowDays int
}

// Configuration is the single per-build, scope="all" configuration record.
type Configuration struct {
	CustomerTargetARR  float64
	CustomerMaxARR     float64
	ProspectTargetARR  float64

	CREVariance               float64
	ATRVariance               float64
	Tier1Variance             float64
	Tier2Variance             float64
	RenewalConcentrationMax   float64
	CapacityVariancePercent   float64

	ScoreWeightContinuity float64
	ScoreWeightGeography  float64
	ScoreWeightTeamTier   float64

	Thresholds      Thresholds
	LastCalculatedAt time.Time
	HasLastCalculatedAt bool

	TerritoryMappings TerritoryMapping
	Stability         LPStabilityConfig
}

// AssignmentProposal is the ephemeral output of one (account, run).
type AssignmentProposal struct {
	AccountID        string
	CurrentOwnerID   string
	HasCurrentOwner  bool
	ProposedOwnerID  string
	RuleApplied      string // priority code, e.g. "P0"
	Rationale        string
	Warnings         []string
	ConflictRisk     ConflictRisk
}
