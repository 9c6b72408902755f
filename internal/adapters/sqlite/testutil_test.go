// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/safebridge/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all repository tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedDecision inserts a decision with an explicit creation time.
func seedDecision(t *testing.T, db *sql.DB, id, caseID, hospitalID, decision, createdAt string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT INTO decision_log (id, case_id, hospital_id, decision, source, created_at) VALUES (?, ?, ?, ?, 'timeout', ?)",
		id, caseID, hospitalID, decision, createdAt,
	)
	if err != nil {
		t.Fatalf("failed to seed decision: %v", err)
	}
}

// seedRequest inserts a local request and returns its ID.
func seedRequest(t *testing.T, db *sql.DB, id, caseID string) string {
	t.Helper()
	if _, err := db.Exec("INSERT INTO local_requests (id, case_id) VALUES (?, ?)", id, caseID); err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
	return id
}
