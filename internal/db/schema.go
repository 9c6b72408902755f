package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Tests load it
// through GetSchemaSQL() and never declare tables of their own, so a
// repository referencing a missing column fails with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- Handoff journal: one row per approved case, checkpointed after every store step
CREATE TABLE IF NOT EXISTS handoffs (
	case_id TEXT PRIMARY KEY,
	hospital_id TEXT NOT NULL,
	hospital_name TEXT,
	call_ref TEXT,
	distance_km REAL NOT NULL DEFAULT 0,
	eta_minutes INTEGER NOT NULL DEFAULT 0,
	case_payload TEXT,
	request_id TEXT,
	assignment_id TEXT,
	session_id TEXT,
	local INTEGER NOT NULL DEFAULT 0,
	synced INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_handoffs_synced ON handoffs(synced);

-- Decision log: every applied resolution, append-only
CREATE TABLE IF NOT EXISTS decision_log (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	hospital_id TEXT NOT NULL,
	decision TEXT NOT NULL CHECK(decision IN ('approved', 'rejected')),
	source TEXT NOT NULL CHECK(source IN ('poll', 'push', 'timeout', 'manual', 'dial')),
	reason TEXT,
	actor_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decision_log_case ON decision_log(case_id);
CREATE INDEX IF NOT EXISTS idx_decision_log_created ON decision_log(created_at);

-- Local assignment store, used when no backend is configured
CREATE TABLE IF NOT EXISTS local_requests (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	team_id TEXT,
	patient_sex TEXT,
	patient_age INTEGER,
	pre_ktas INTEGER,
	transcript TEXT,
	summary TEXT,
	lat REAL,
	lon REAL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS local_assignments (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	hospital_id TEXT NOT NULL,
	distance_km REAL,
	eta_minutes INTEGER,
	call_ref TEXT,
	status TEXT NOT NULL CHECK(status IN ('pending', 'approved', 'rejected')) DEFAULT 'pending',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (request_id) REFERENCES local_requests(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_local_assignments_request ON local_assignments(request_id);

CREATE TABLE IF NOT EXISTS local_sessions (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	assignment_id TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (request_id) REFERENCES local_requests(id) ON DELETE CASCADE,
	FOREIGN KEY (assignment_id) REFERENCES local_assignments(id) ON DELETE CASCADE
);
`

// InitSchema creates the schema on a fresh database and runs pending
// migrations on an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount == 0 {
		// Fresh install - create the modern schema directly and mark every
		// migration as applied.
		if _, err := db.Exec(SchemaSQL); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		if err := createVersionTable(db); err != nil {
			return err
		}
		for _, m := range migrations {
			if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
				return err
			}
		}
		return nil
	}

	return RunMigrations(db)
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
