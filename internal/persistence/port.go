// Package persistence names the collaborator the assignment orchestrator
// depends on, by verb rather than by store technology (§6). It carries no
// storage code itself; see the memory and sqlite subpackages for concrete
// adapters implementing Port.
package persistence

import (
	"context"

	"github.com/aristath/territory-assign/internal/domain"
)

// RepFilter narrows listReps beyond the default "every rep on file".
type RepFilter struct {
	EligibleOnly bool
}

// OwnerWrite is one row of a writeProposedOwners/writeProposedOppOwners
// batch.
type OwnerWrite struct {
	AccountID     string
	NewOwnerID    string
	NewOwnerName  string
}

// AssignmentWrite is one row of an upsertAssignments batch.
type AssignmentWrite struct {
	AccountID    string
	Rationale    string
	PriorityCode string
}

// AuditEntry is one appendAudit call's payload.
type AuditEntry struct {
	Action     string
	TableName  string
	RecordID   string
	BuildID    string
	Actor      string
	OldValues  map[string]any
	NewValues  map[string]any
}

// Port is the persistence interface consumed by the assignment
// orchestrator (§6). Every method is scoped to a buildId.
type Port interface {
	ListParentAccounts(ctx context.Context, buildID string) ([]domain.AggregatedAccount, error)
	ListOpportunities(ctx context.Context, buildID string, accountIDs []string) ([]domain.Opportunity, error)
	ListReps(ctx context.Context, buildID string, filter RepFilter) ([]domain.SalesRep, error)
	LoadConfig(ctx context.Context, buildID string, scope string) (domain.Configuration, error)
	SaveConfig(ctx context.Context, buildID string, scope string, patch domain.Configuration) error

	WriteProposedOwners(ctx context.Context, buildID string, batch []OwnerWrite) error
	WriteProposedOppOwners(ctx context.Context, buildID string, batch []OwnerWrite) error
	UpsertAssignments(ctx context.Context, buildID string, batch []AssignmentWrite) error
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// CreateBackfillRep creates a backfill-target rep inheriting region,
	// team tier, and PE-firm list from the leaving rep; its id is returned
	// for MigrateToBackfillRep.
	CreateBackfillRep(ctx context.Context, buildID string, leavingRepID string) (domain.SalesRep, error)
	// MigrateToBackfillRep moves every account and opportunity currently
	// owned by fromRepID (the leaving rep) to toRepID.
	MigrateToBackfillRep(ctx context.Context, buildID string, fromRepID, toRepID string) error
	// SetBackfillSource flips is_backfill_source on repID.
	SetBackfillSource(ctx context.Context, buildID string, repID string, isSource bool) error
	// SetIncludeInAssignments flips include_in_assignments on repID, used
	// by the backfill disable path.
	SetIncludeInAssignments(ctx context.Context, buildID string, repID string, include bool) error
}

// CacheInvalidator signals the keyed caches listed in §6 to evict after a
// successful execute. Adapters without a cache layer may no-op.
type CacheInvalidator interface {
	Invalidate(buildID string, keys ...string)
}

// InvalidationKeys is the full §6 cache-key set invalidated after execute.
var InvalidationKeys = []string{
	"accounts",
	"opportunities",
	"assignment-rationales",
	"analytics-metrics",
	"priority-distribution",
	"last-assignment-timestamp",
	"enhanced-balancing",
	"workload-balance",
	"stability-lock-breakdown",
}
