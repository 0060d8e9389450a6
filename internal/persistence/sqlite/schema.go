package sqlite

// schema is the single source of truth for this adapter's tables, all
// scoped by build_id the way every persistence.Port method is. One
// database serves every build; there is no per-build file the way the
// teacher splits universe/config/ledger/portfolio into separate
// databases, since an assignment run's tables are small enough and
// always read/written together.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	build_id                  TEXT NOT NULL,
	account_id                TEXT NOT NULL,
	ultimate_parent_id        TEXT NOT NULL DEFAULT '',
	arr                       REAL NOT NULL DEFAULT 0,
	atr                       REAL NOT NULL DEFAULT 0,
	pipeline_value            REAL NOT NULL DEFAULT 0,
	hierarchy_arr             REAL NOT NULL DEFAULT 0,
	hierarchy_bookings_arr_converted REAL,
	calculated_arr            REAL,
	expansion_tier            TEXT NOT NULL DEFAULT '',
	initial_sale_tier         TEXT NOT NULL DEFAULT '',
	geo                       TEXT NOT NULL DEFAULT '',
	sales_territory           TEXT NOT NULL DEFAULT '',
	employee_count            INTEGER NOT NULL DEFAULT 0,
	enterprise_or_commercial  TEXT NOT NULL DEFAULT '',
	industry                  TEXT NOT NULL DEFAULT '',
	pe_firm                   TEXT NOT NULL DEFAULT '',
	owner_id                  TEXT NOT NULL DEFAULT '',
	new_owner_id              TEXT NOT NULL DEFAULT '',
	owner_change_date         INTEGER,
	owners_lifetime           INTEGER NOT NULL DEFAULT 0,
	exclude_from_reassignment INTEGER NOT NULL DEFAULT 0,
	cre_count                 INTEGER NOT NULL DEFAULT 0,
	cre_risk                  INTEGER NOT NULL DEFAULT 0,
	renewal_date              INTEGER,
	PRIMARY KEY (build_id, account_id)
);

CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(build_id, ultimate_parent_id);
CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(build_id, owner_id);

CREATE TABLE IF NOT EXISTS sales_reps (
	build_id               TEXT NOT NULL,
	rep_id                 TEXT NOT NULL,
	name                   TEXT NOT NULL DEFAULT '',
	region                 TEXT NOT NULL DEFAULT '',
	team_tier              TEXT NOT NULL DEFAULT '',
	flm                    TEXT NOT NULL DEFAULT '',
	slm                    TEXT NOT NULL DEFAULT '',
	pe_firms_json          TEXT NOT NULL DEFAULT '[]',
	is_active              INTEGER NOT NULL DEFAULT 0,
	include_in_assignments INTEGER NOT NULL DEFAULT 0,
	is_manager             INTEGER NOT NULL DEFAULT 0,
	is_strategic_rep       INTEGER NOT NULL DEFAULT 0,
	is_backfill_source     INTEGER NOT NULL DEFAULT 0,
	is_backfill_target     INTEGER NOT NULL DEFAULT 0,
	backfill_target_rep_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (build_id, rep_id)
);

CREATE TABLE IF NOT EXISTS opportunities (
	build_id             TEXT NOT NULL,
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id           TEXT NOT NULL,
	owner_id             TEXT NOT NULL DEFAULT '',
	new_owner_id         TEXT NOT NULL DEFAULT '',
	opportunity_type     TEXT NOT NULL DEFAULT '',
	available_to_renew   REAL NOT NULL DEFAULT 0,
	net_arr              REAL NOT NULL DEFAULT 0,
	amount               REAL NOT NULL DEFAULT 0,
	renewal_event_date   INTEGER,
	close_date           INTEGER,
	cre_status           TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_opportunities_build_account ON opportunities(build_id, account_id);

CREATE TABLE IF NOT EXISTS configurations (
	build_id                   TEXT NOT NULL,
	scope                      TEXT NOT NULL,
	customer_target_arr        REAL NOT NULL DEFAULT 0,
	customer_max_arr           REAL NOT NULL DEFAULT 0,
	prospect_target_arr        REAL NOT NULL DEFAULT 0,
	cre_variance               REAL NOT NULL DEFAULT 0,
	atr_variance               REAL NOT NULL DEFAULT 0,
	tier1_variance             REAL NOT NULL DEFAULT 0,
	tier2_variance             REAL NOT NULL DEFAULT 0,
	renewal_concentration_max  REAL NOT NULL DEFAULT 0,
	capacity_variance_percent  REAL NOT NULL DEFAULT 0,
	score_weight_continuity    REAL NOT NULL DEFAULT 0,
	score_weight_geography     REAL NOT NULL DEFAULT 0,
	score_weight_team_tier     REAL NOT NULL DEFAULT 0,
	thresholds_json            TEXT NOT NULL DEFAULT '{}',
	territory_mappings_json    TEXT NOT NULL DEFAULT '{}',
	stability_json             TEXT NOT NULL DEFAULT '{}',
	last_calculated_at         INTEGER,
	PRIMARY KEY (build_id, scope)
);

CREATE TABLE IF NOT EXISTS assignments (
	build_id      TEXT NOT NULL,
	account_id    TEXT NOT NULL,
	rationale     TEXT NOT NULL DEFAULT '',
	priority_code TEXT NOT NULL DEFAULT '',
	updated_at    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (build_id, account_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id        TEXT NOT NULL,
	action          TEXT NOT NULL,
	table_name      TEXT NOT NULL DEFAULT '',
	record_id       TEXT NOT NULL DEFAULT '',
	actor           TEXT NOT NULL DEFAULT '',
	old_values_json TEXT NOT NULL DEFAULT '{}',
	new_values_json TEXT NOT NULL DEFAULT '{}',
	created_at      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_audit_log_build ON audit_log(build_id);
`
