package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_handoff_journal_and_decision_log",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_local_assignment_store",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_handoff_retry_tracking",
		Up:      migrationV3,
	},
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations applies every migration newer than the recorded schema version.
func RunMigrations(db *sql.DB) error {
	if err := createVersionTable(db); err != nil {
		return err
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// CurrentVersion returns the highest applied migration.
func CurrentVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	return v, err
}

func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

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
	`)
	return err
}

func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
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
	`)
	return err
}

func migrationV3(tx *sql.Tx) error {
	stmts := []string{
		"ALTER TABLE handoffs ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE handoffs ADD COLUMN last_error TEXT",
		"CREATE INDEX IF NOT EXISTS idx_handoffs_synced ON handoffs(synced)",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
