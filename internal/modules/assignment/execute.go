package assignment

import (
	"context"
	"fmt"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/persistence"
)

// Execute implements §4.8's execute(proposals) operation: dedup, a
// pre-flight balance check, then the persistence writes and cache
// invalidation.
func (o *Orchestrator) Execute(ctx context.Context, buildID string, proposals []domain.AssignmentProposal, bypassOverloadCheck bool) (ExecuteResult, error) {
	deduped := dedupeByAccountID(proposals)

	if !bypassOverloadCheck {
		accounts, err := o.port.ListParentAccounts(ctx, buildID)
		if err != nil {
			return ExecuteResult{}, fmt.Errorf("loading accounts for overload check: %w", err)
		}
		arrByAccount := make(map[string]float64, len(accounts))
		for _, a := range accounts {
			arrByAccount[a.AccountID] = a.AggregatedARR
		}
		if overload := detectOverload(deduped, arrByAccount); overload != nil {
			return ExecuteResult{Halted: true, Overload: overload}, nil
		}
	}

	reps, err := o.port.ListReps(ctx, buildID, persistence.RepFilter{})
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("loading reps: %w", err)
	}
	repNames := make(map[string]string, len(reps))
	for _, r := range reps {
		repNames[r.RepID] = r.Name
	}

	ownerBatch := make([]persistence.OwnerWrite, 0, len(deduped))
	assignmentBatch := make([]persistence.AssignmentWrite, 0, len(deduped))
	for _, p := range deduped {
		ownerBatch = append(ownerBatch, persistence.OwnerWrite{
			AccountID:    p.AccountID,
			NewOwnerID:   p.ProposedOwnerID,
			NewOwnerName: repNames[p.ProposedOwnerID],
		})
		assignmentBatch = append(assignmentBatch, persistence.AssignmentWrite{
			AccountID:    p.AccountID,
			Rationale:    p.Rationale,
			PriorityCode: p.RuleApplied,
		})
	}

	if err := o.port.WriteProposedOwners(ctx, buildID, ownerBatch); err != nil {
		return ExecuteResult{}, fmt.Errorf("writing proposed owners: %w", err)
	}
	if err := o.port.WriteProposedOppOwners(ctx, buildID, ownerBatch); err != nil {
		return ExecuteResult{}, fmt.Errorf("writing proposed opportunity owners: %w", err)
	}
	if err := o.port.UpsertAssignments(ctx, buildID, assignmentBatch); err != nil {
		return ExecuteResult{}, fmt.Errorf("upserting assignments: %w", err)
	}

	if o.cache != nil {
		o.cache.Invalidate(buildID, persistence.InvalidationKeys...)
	}

	o.events.EmitTyped("assignment", &events.RunCompletedData{BuildID: buildID})

	return ExecuteResult{WrittenAccounts: len(deduped)}, nil
}

// dedupeByAccountID keeps the last proposal seen for each account id,
// per §4.8's "deduplicate by account_id (last write wins)".
func dedupeByAccountID(proposals []domain.AssignmentProposal) []domain.AssignmentProposal {
	byID := make(map[string]domain.AssignmentProposal, len(proposals))
	order := make([]string, 0, len(proposals))
	for _, p := range proposals {
		if _, seen := byID[p.AccountID]; !seen {
			order = append(order, p.AccountID)
		}
		byID[p.AccountID] = p
	}
	out := make([]domain.AssignmentProposal, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// detectOverload implements §4.8's pre-flight balance verification: if any
// rep's projected ARR exceeds the mean across reps that received at least
// one proposal by more than overloadVarianceMax, execution halts.
func detectOverload(proposals []domain.AssignmentProposal, arrByAccount map[string]float64) *OverloadWarning {
	projected := map[string]float64{}
	for _, p := range proposals {
		projected[p.ProposedOwnerID] += arrByAccount[p.AccountID]
	}
	if len(projected) == 0 {
		return nil
	}

	var total float64
	for _, v := range projected {
		total += v
	}
	mean := total / float64(len(projected))
	if mean <= 0 {
		return nil
	}

	for repID, arr := range projected {
		overloadPct := (arr - mean) / mean
		if overloadPct > overloadVarianceMax {
			return &OverloadWarning{RepID: repID, ProjectedARR: arr, Target: mean, OverloadPercent: overloadPct}
		}
	}
	return nil
}

// EnableBackfill implements the §4.8 backfill-enable path: create a
// backfill-target rep, migrate the leaving rep's accounts and
// opportunities to it, flip is_backfill_source, and audit the action.
func (o *Orchestrator) EnableBackfill(ctx context.Context, buildID, leavingRepID string) (domain.SalesRep, error) {
	backfillRep, err := o.port.CreateBackfillRep(ctx, buildID, leavingRepID)
	if err != nil {
		return domain.SalesRep{}, fmt.Errorf("creating backfill rep: %w", err)
	}
	if err := o.port.MigrateToBackfillRep(ctx, buildID, leavingRepID, backfillRep.RepID); err != nil {
		return domain.SalesRep{}, fmt.Errorf("migrating accounts to backfill rep: %w", err)
	}
	if err := o.port.SetBackfillSource(ctx, buildID, leavingRepID, true); err != nil {
		return domain.SalesRep{}, fmt.Errorf("flagging leaving rep as backfill source: %w", err)
	}
	if err := o.port.SetIncludeInAssignments(ctx, buildID, leavingRepID, false); err != nil {
		return domain.SalesRep{}, fmt.Errorf("excluding leaving rep from future assignments: %w", err)
	}

	if err := o.port.AppendAudit(ctx, persistence.AuditEntry{
		Action:    "BACKFILL_CREATED",
		TableName: "sales_reps",
		RecordID:  leavingRepID,
		BuildID:   buildID,
		NewValues: map[string]any{"backfill_rep_id": backfillRep.RepID},
	}); err != nil {
		return domain.SalesRep{}, fmt.Errorf("appending backfill audit entry: %w", err)
	}

	o.events.EmitTyped("assignment", &events.BackfillToggledData{LeavingRepID: leavingRepID, BackfillRepID: backfillRep.RepID, Enabled: true})
	return backfillRep, nil
}

// DisableBackfill reverts is_backfill_source and include_in_assignments
// on the leaving rep only; it does NOT delete the created backfill rep or
// revert migrated accounts/opportunities (§4.8: "rollback of the flag
// only").
func (o *Orchestrator) DisableBackfill(ctx context.Context, buildID, leavingRepID string) error {
	if err := o.port.SetBackfillSource(ctx, buildID, leavingRepID, false); err != nil {
		return fmt.Errorf("clearing backfill source flag: %w", err)
	}
	if err := o.port.SetIncludeInAssignments(ctx, buildID, leavingRepID, true); err != nil {
		return fmt.Errorf("restoring include_in_assignments: %w", err)
	}
	if err := o.port.AppendAudit(ctx, persistence.AuditEntry{
		Action:    "BACKFILL_DISABLED",
		TableName: "sales_reps",
		RecordID:  leavingRepID,
		BuildID:   buildID,
	}); err != nil {
		return fmt.Errorf("appending backfill-disabled audit entry: %w", err)
	}

	o.events.EmitTyped("assignment", &events.BackfillToggledData{LeavingRepID: leavingRepID, Enabled: false})
	return nil
}
