package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/persistence"
	"github.com/rs/zerolog"
)

// Store is the sqlite-backed persistence.Port implementation.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// New wraps an already-open, already-migrated *sql.DB.
func New(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("repository", "persistence_sqlite").Logger()}
}

func nullFloat(v float64, has bool) sql.NullFloat64 {
	if !has {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullTime(t time.Time, has bool) sql.NullInt64 {
	if !has || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeFromNull(v sql.NullInt64) (time.Time, bool) {
	if !v.Valid {
		return time.Time{}, false
	}
	return time.Unix(v.Int64, 0).UTC(), true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(v int) bool { return v != 0 }

// Seed inserts a build's starting accounts, reps, opportunities, and
// configuration in one call, for tests that want to exercise the real
// sqlite adapter instead of persistence/memory's map-backed Store.
// On conflict with an existing (buildID, accountID) row only
// ultimate_parent_id, arr, atr, hierarchy_arr, the two cascade ARR columns
// and owner_id are updated; on an existing (buildID, repID) row only
// is_active and include_in_assignments are. Opportunities are always
// inserted as new rows.
func (s *Store) Seed(ctx context.Context, buildID string, accounts []domain.Account, reps []domain.SalesRep, opps []domain.Opportunity, cfg domain.Configuration) error {
	for _, a := range accounts {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO accounts (
				build_id, account_id, ultimate_parent_id, arr, atr, pipeline_value, hierarchy_arr,
				hierarchy_bookings_arr_converted, calculated_arr,
				expansion_tier, initial_sale_tier, geo, sales_territory, employee_count,
				enterprise_or_commercial, industry, pe_firm, owner_id, new_owner_id,
				owners_lifetime, exclude_from_reassignment, cre_count, cre_risk
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(build_id, account_id) DO UPDATE SET
				ultimate_parent_id = excluded.ultimate_parent_id,
				arr = excluded.arr,
				atr = excluded.atr,
				hierarchy_arr = excluded.hierarchy_arr,
				hierarchy_bookings_arr_converted = excluded.hierarchy_bookings_arr_converted,
				calculated_arr = excluded.calculated_arr,
				owner_id = excluded.owner_id
		`, buildID, a.AccountID, a.UltimateParentID, a.ARR, a.ATR, a.PipelineValue, a.HierarchyARR,
			nullFloat(a.HierarchyBookingsARRConverted, a.HasHierarchyBookingsARRConverted),
			nullFloat(a.CalculatedARR, a.HasCalculatedARR),
			string(a.ExpansionTier), string(a.InitialSaleTier), a.Geo, a.SalesTerritory, a.EmployeeCount,
			a.EnterpriseOrCommercial, a.Industry, a.PEFirm, a.OwnerID, a.NewOwnerID,
			a.OwnersLifetime, boolToInt(a.ExcludeFromReassignment), a.CRECount, boolToInt(a.CRERisk),
		); err != nil {
			return fmt.Errorf("seeding account %s: %w", a.AccountID, err)
		}
	}

	for _, r := range reps {
		peFirms, err := json.Marshal(r.PEFirms)
		if err != nil {
			return fmt.Errorf("encoding pe firms for rep %s: %w", r.RepID, err)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO sales_reps (
				build_id, rep_id, name, region, team_tier, flm, slm, pe_firms_json,
				is_active, include_in_assignments, is_manager, is_strategic_rep,
				is_backfill_source, is_backfill_target, backfill_target_rep_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(build_id, rep_id) DO UPDATE SET
				is_active = excluded.is_active,
				include_in_assignments = excluded.include_in_assignments
		`, buildID, r.RepID, r.Name, r.Region, r.TeamTier, r.FLM, r.SLM, string(peFirms),
			boolToInt(r.IsActive), boolToInt(r.IncludeInAssignments), boolToInt(r.IsManager), boolToInt(r.IsStrategicRep),
			boolToInt(r.IsBackfillSource), boolToInt(r.IsBackfillTarget), r.BackfillTargetRepID,
		); err != nil {
			return fmt.Errorf("seeding rep %s: %w", r.RepID, err)
		}
	}

	for _, o := range opps {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO opportunities (
				build_id, account_id, owner_id, new_owner_id, opportunity_type,
				available_to_renew, net_arr, amount, renewal_event_date, close_date, cre_status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, buildID, o.AccountID, o.OwnerID, o.NewOwnerID, o.OpportunityType,
			o.AvailableToRenew, o.NetARR, o.Amount,
			nullTime(o.RenewalEventDate, o.HasRenewalEventDate), nullTime(o.CloseDate, !o.CloseDate.IsZero()), o.CREStatus,
		); err != nil {
			return fmt.Errorf("seeding opportunity for account %s: %w", o.AccountID, err)
		}
	}

	if err := s.SaveConfig(ctx, buildID, "all", cfg); err != nil {
		return fmt.Errorf("seeding configuration: %w", err)
	}
	return nil
}

func (s *Store) ListParentAccounts(ctx context.Context, buildID string) ([]domain.AggregatedAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, ultimate_parent_id, arr, atr, pipeline_value, hierarchy_arr,
		       hierarchy_bookings_arr_converted, calculated_arr,
		       expansion_tier, initial_sale_tier, geo, sales_territory, employee_count,
		       enterprise_or_commercial, industry, pe_firm, owner_id, new_owner_id,
		       owner_change_date, owners_lifetime, exclude_from_reassignment,
		       cre_count, cre_risk, renewal_date
		FROM accounts WHERE build_id = ?
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var expansionTier, initialSaleTier string
		var ownerChangeDate, renewalDate sql.NullInt64
		var hierarchyBookingsARR, calculatedARR sql.NullFloat64
		var excludeFlag, creRiskFlag int
		if err := rows.Scan(
			&a.AccountID, &a.UltimateParentID, &a.ARR, &a.ATR, &a.PipelineValue, &a.HierarchyARR,
			&hierarchyBookingsARR, &calculatedARR,
			&expansionTier, &initialSaleTier, &a.Geo, &a.SalesTerritory, &a.EmployeeCount,
			&a.EnterpriseOrCommercial, &a.Industry, &a.PEFirm, &a.OwnerID, &a.NewOwnerID,
			&ownerChangeDate, &a.OwnersLifetime, &excludeFlag,
			&a.CRECount, &creRiskFlag, &renewalDate,
		); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		a.ExpansionTier = domain.Tier(expansionTier)
		a.InitialSaleTier = domain.Tier(initialSaleTier)
		a.Tier = a.EffectiveTier()
		a.IsParent = a.UltimateParentID == ""
		a.IsCustomer = a.HierarchyARR > 0
		a.HierarchyBookingsARRConverted = hierarchyBookingsARR.Float64
		a.HasHierarchyBookingsARRConverted = hierarchyBookingsARR.Valid
		a.CalculatedARR = calculatedARR.Float64
		a.HasCalculatedARR = calculatedARR.Valid
		a.ExcludeFromReassignment = intToBool(excludeFlag)
		a.CRERisk = intToBool(creRiskFlag)
		a.OwnerChangeDate, _ = timeFromNull(ownerChangeDate)
		a.RenewalDate, a.HasRenewalDate = timeFromNull(renewalDate)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	opps, err := s.ListOpportunities(ctx, buildID, nil)
	if err != nil {
		return nil, err
	}

	idx := domain.NewIndex(accounts, nil, opps)
	return domain.Aggregate(idx), nil
}

func (s *Store) ListOpportunities(ctx context.Context, buildID string, accountIDs []string) ([]domain.Opportunity, error) {
	query := `
		SELECT account_id, owner_id, new_owner_id, opportunity_type, available_to_renew,
		       net_arr, amount, renewal_event_date, close_date, cre_status
		FROM opportunities WHERE build_id = ?
	`
	args := []any{buildID}
	if len(accountIDs) > 0 {
		placeholders := make([]string, len(accountIDs))
		for i, id := range accountIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " AND account_id IN (" + strings.Join(placeholders, ",") + ")"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		var renewalEventDate, closeDate sql.NullInt64
		if err := rows.Scan(
			&o.AccountID, &o.OwnerID, &o.NewOwnerID, &o.OpportunityType, &o.AvailableToRenew,
			&o.NetARR, &o.Amount, &renewalEventDate, &closeDate, &o.CREStatus,
		); err != nil {
			return nil, fmt.Errorf("scanning opportunity row: %w", err)
		}
		o.RenewalEventDate, o.HasRenewalEventDate = timeFromNull(renewalEventDate)
		o.CloseDate, _ = timeFromNull(closeDate)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opportunity rows: %w", err)
	}
	return out, nil
}

func (s *Store) ListReps(ctx context.Context, buildID string, filter persistence.RepFilter) ([]domain.SalesRep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rep_id, name, region, team_tier, flm, slm, pe_firms_json,
		       is_active, include_in_assignments, is_manager, is_strategic_rep,
		       is_backfill_source, is_backfill_target, backfill_target_rep_id
		FROM sales_reps WHERE build_id = ?
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("querying sales reps: %w", err)
	}
	defer rows.Close()

	var out []domain.SalesRep
	for rows.Next() {
		var r domain.SalesRep
		var peFirmsJSON string
		var active, include, manager, strategic, backfillSrc, backfillTgt int
		if err := rows.Scan(
			&r.RepID, &r.Name, &r.Region, &r.TeamTier, &r.FLM, &r.SLM, &peFirmsJSON,
			&active, &include, &manager, &strategic, &backfillSrc, &backfillTgt, &r.BackfillTargetRepID,
		); err != nil {
			return nil, fmt.Errorf("scanning sales rep row: %w", err)
		}
		if err := json.Unmarshal([]byte(peFirmsJSON), &r.PEFirms); err != nil {
			return nil, fmt.Errorf("decoding pe_firms_json for rep %s: %w", r.RepID, err)
		}
		r.IsActive = intToBool(active)
		r.IncludeInAssignments = intToBool(include)
		r.IsManager = intToBool(manager)
		r.IsStrategicRep = intToBool(strategic)
		r.IsBackfillSource = intToBool(backfillSrc)
		r.IsBackfillTarget = intToBool(backfillTgt)

		if filter.EligibleOnly && !r.Eligible() {
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales rep rows: %w", err)
	}
	return out, nil
}

func (s *Store) LoadConfig(ctx context.Context, buildID string, scope string) (domain.Configuration, error) {
	var cfg domain.Configuration
	var thresholdsJSON, mappingsJSON, stabilityJSON string
	var lastCalculated sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
		SELECT customer_target_arr, customer_max_arr, prospect_target_arr,
		       cre_variance, atr_variance, tier1_variance, tier2_variance,
		       renewal_concentration_max, capacity_variance_percent,
		       score_weight_continuity, score_weight_geography, score_weight_team_tier,
		       thresholds_json, territory_mappings_json, stability_json, last_calculated_at
		FROM configurations WHERE build_id = ? AND scope = ?
	`, buildID, scope).Scan(
		&cfg.CustomerTargetARR, &cfg.CustomerMaxARR, &cfg.ProspectTargetARR,
		&cfg.CREVariance, &cfg.ATRVariance, &cfg.Tier1Variance, &cfg.Tier2Variance,
		&cfg.RenewalConcentrationMax, &cfg.CapacityVariancePercent,
		&cfg.ScoreWeightContinuity, &cfg.ScoreWeightGeography, &cfg.ScoreWeightTeamTier,
		&thresholdsJSON, &mappingsJSON, &stabilityJSON, &lastCalculated,
	)
	if err == sql.ErrNoRows {
		s.log.Debug().Str("build_id", buildID).Str("scope", scope).Msg("no configuration row yet, returning zero value")
		return domain.Configuration{}, nil
	}
	if err != nil {
		return domain.Configuration{}, fmt.Errorf("loading configuration: %w", err)
	}

	if err := json.Unmarshal([]byte(thresholdsJSON), &cfg.Thresholds); err != nil {
		return domain.Configuration{}, fmt.Errorf("decoding thresholds_json: %w", err)
	}
	if err := json.Unmarshal([]byte(mappingsJSON), &cfg.TerritoryMappings); err != nil {
		return domain.Configuration{}, fmt.Errorf("decoding territory_mappings_json: %w", err)
	}
	if err := json.Unmarshal([]byte(stabilityJSON), &cfg.Stability); err != nil {
		return domain.Configuration{}, fmt.Errorf("decoding stability_json: %w", err)
	}
	cfg.LastCalculatedAt, cfg.HasLastCalculatedAt = timeFromNull(lastCalculated)

	return cfg, nil
}

func (s *Store) SaveConfig(ctx context.Context, buildID string, scope string, patch domain.Configuration) error {
	thresholdsJSON, err := json.Marshal(patch.Thresholds)
	if err != nil {
		return fmt.Errorf("encoding thresholds: %w", err)
	}
	mappingsJSON, err := json.Marshal(patch.TerritoryMappings)
	if err != nil {
		return fmt.Errorf("encoding territory mappings: %w", err)
	}
	stabilityJSON, err := json.Marshal(patch.Stability)
	if err != nil {
		return fmt.Errorf("encoding stability config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO configurations (
			build_id, scope, customer_target_arr, customer_max_arr, prospect_target_arr,
			cre_variance, atr_variance, tier1_variance, tier2_variance,
			renewal_concentration_max, capacity_variance_percent,
			score_weight_continuity, score_weight_geography, score_weight_team_tier,
			thresholds_json, territory_mappings_json, stability_json, last_calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id, scope) DO UPDATE SET
			customer_target_arr = excluded.customer_target_arr,
			customer_max_arr = excluded.customer_max_arr,
			prospect_target_arr = excluded.prospect_target_arr,
			cre_variance = excluded.cre_variance,
			atr_variance = excluded.atr_variance,
			tier1_variance = excluded.tier1_variance,
			tier2_variance = excluded.tier2_variance,
			renewal_concentration_max = excluded.renewal_concentration_max,
			capacity_variance_percent = excluded.capacity_variance_percent,
			score_weight_continuity = excluded.score_weight_continuity,
			score_weight_geography = excluded.score_weight_geography,
			score_weight_team_tier = excluded.score_weight_team_tier,
			thresholds_json = excluded.thresholds_json,
			territory_mappings_json = excluded.territory_mappings_json,
			stability_json = excluded.stability_json,
			last_calculated_at = excluded.last_calculated_at
	`, buildID, scope, patch.CustomerTargetARR, patch.CustomerMaxARR, patch.ProspectTargetARR,
		patch.CREVariance, patch.ATRVariance, patch.Tier1Variance, patch.Tier2Variance,
		patch.RenewalConcentrationMax, patch.CapacityVariancePercent,
		patch.ScoreWeightContinuity, patch.ScoreWeightGeography, patch.ScoreWeightTeamTier,
		string(thresholdsJSON), string(mappingsJSON), string(stabilityJSON),
		nullTime(patch.LastCalculatedAt, patch.HasLastCalculatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

func (s *Store) WriteProposedOwners(ctx context.Context, buildID string, batch []persistence.OwnerWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE accounts SET new_owner_id = ? WHERE build_id = ? AND account_id = ?`)
	if err != nil {
		return fmt.Errorf("preparing owner update: %w", err)
	}
	defer stmt.Close()

	for _, w := range batch {
		if _, err := stmt.ExecContext(ctx, w.NewOwnerID, buildID, w.AccountID); err != nil {
			return fmt.Errorf("writing proposed owner for account %s: %w", w.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing proposed owners: %w", err)
	}
	s.log.Info().Str("build_id", buildID).Int("count", len(batch)).Msg("wrote proposed owners")
	return nil
}

func (s *Store) WriteProposedOppOwners(ctx context.Context, buildID string, batch []persistence.OwnerWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE opportunities SET new_owner_id = ? WHERE build_id = ? AND account_id = ?`)
	if err != nil {
		return fmt.Errorf("preparing opportunity owner update: %w", err)
	}
	defer stmt.Close()

	for _, w := range batch {
		if _, err := stmt.ExecContext(ctx, w.NewOwnerID, buildID, w.AccountID); err != nil {
			return fmt.Errorf("writing proposed opportunity owner for account %s: %w", w.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing proposed opportunity owners: %w", err)
	}
	return nil
}

func (s *Store) UpsertAssignments(ctx context.Context, buildID string, batch []persistence.AssignmentWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assignments (build_id, account_id, rationale, priority_code, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(build_id, account_id) DO UPDATE SET
			rationale = excluded.rationale,
			priority_code = excluded.priority_code,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing assignment upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, w := range batch {
		if _, err := stmt.ExecContext(ctx, buildID, w.AccountID, w.Rationale, w.PriorityCode, now); err != nil {
			return fmt.Errorf("upserting assignment for account %s: %w", w.AccountID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing assignments: %w", err)
	}
	s.log.Info().Str("build_id", buildID).Int("count", len(batch)).Msg("upserted assignments")
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	oldJSON, err := json.Marshal(entry.OldValues)
	if err != nil {
		return fmt.Errorf("encoding old_values: %w", err)
	}
	newJSON, err := json.Marshal(entry.NewValues)
	if err != nil {
		return fmt.Errorf("encoding new_values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (build_id, action, table_name, record_id, actor, old_values_json, new_values_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.BuildID, entry.Action, entry.TableName, entry.RecordID, entry.Actor, string(oldJSON), string(newJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

func (s *Store) CreateBackfillRep(ctx context.Context, buildID string, leavingRepID string) (domain.SalesRep, error) {
	reps, err := s.ListReps(ctx, buildID, persistence.RepFilter{})
	if err != nil {
		return domain.SalesRep{}, err
	}
	var leaving domain.SalesRep
	found := false
	for _, r := range reps {
		if r.RepID == leavingRepID {
			leaving = r
			found = true
			break
		}
	}
	if !found {
		return domain.SalesRep{}, fmt.Errorf("leaving rep not found: %s", leavingRepID)
	}

	rep := domain.SalesRep{
		RepID:                fmt.Sprintf("backfill-%s-%d", leavingRepID, time.Now().UnixNano()),
		Name:                 "BF-" + leaving.Name,
		Region:               leaving.Region,
		TeamTier:             leaving.TeamTier,
		PEFirms:              append([]string(nil), leaving.PEFirms...),
		IsActive:             true,
		IncludeInAssignments: true,
		IsBackfillTarget:     true,
	}

	peFirmsJSON, err := json.Marshal(rep.PEFirms)
	if err != nil {
		return domain.SalesRep{}, fmt.Errorf("encoding pe_firms: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales_reps (build_id, rep_id, name, region, team_tier, pe_firms_json,
		                         is_active, include_in_assignments, is_backfill_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, buildID, rep.RepID, rep.Name, rep.Region, rep.TeamTier, string(peFirmsJSON),
		boolToInt(rep.IsActive), boolToInt(rep.IncludeInAssignments), boolToInt(rep.IsBackfillTarget))
	if err != nil {
		return domain.SalesRep{}, fmt.Errorf("creating backfill rep: %w", err)
	}

	s.log.Info().Str("build_id", buildID).Str("leaving_rep_id", leavingRepID).Str("backfill_rep_id", rep.RepID).Msg("created backfill rep")
	return rep, nil
}

func (s *Store) MigrateToBackfillRep(ctx context.Context, buildID string, fromRepID, toRepID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	accountsResult, err := tx.ExecContext(ctx, `UPDATE accounts SET owner_id = ? WHERE build_id = ? AND owner_id = ?`, toRepID, buildID, fromRepID)
	if err != nil {
		return fmt.Errorf("migrating accounts to backfill rep: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE opportunities SET owner_id = ? WHERE build_id = ? AND owner_id = ?`, toRepID, buildID, fromRepID); err != nil {
		return fmt.Errorf("migrating opportunities to backfill rep: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing backfill migration: %w", err)
	}

	moved, _ := accountsResult.RowsAffected()
	s.log.Info().Str("build_id", buildID).Str("from_rep_id", fromRepID).Str("to_rep_id", toRepID).Int64("accounts_moved", moved).Msg("migrated accounts to backfill rep")
	return nil
}

func (s *Store) SetBackfillSource(ctx context.Context, buildID string, repID string, isSource bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sales_reps SET is_backfill_source = ? WHERE build_id = ? AND rep_id = ?`, boolToInt(isSource), buildID, repID)
	if err != nil {
		return fmt.Errorf("setting backfill source flag for rep %s: %w", repID, err)
	}
	return nil
}

func (s *Store) SetIncludeInAssignments(ctx context.Context, buildID string, repID string, include bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sales_reps SET include_in_assignments = ? WHERE build_id = ? AND rep_id = ?`, boolToInt(include), buildID, repID)
	if err != nil {
		return fmt.Errorf("setting include_in_assignments flag for rep %s: %w", repID, err)
	}
	return nil
}
