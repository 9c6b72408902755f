package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestOpen_FreshInstall(t *testing.T) {
	conn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer conn.Close()

	v, err := CurrentVersion(conn)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("version = %d, want %d", v, len(migrations))
	}

	for _, table := range []string{"handoffs", "decision_log", "local_requests", "local_assignments", "local_sessions"} {
		var n int
		if err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "safebridge.db")

	conn, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := conn.Exec("INSERT INTO handoffs (case_id, hospital_id) VALUES ('CASE-1', 'H1')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	conn.Close()

	conn, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer conn.Close()

	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM handoffs").Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 1 {
		t.Errorf("handoffs = %d, want 1", n)
	}
}

func TestRunMigrations_UpgradesFromV1(t *testing.T) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	conn.SetMaxOpenConns(1)
	defer conn.Close()

	if err := createVersionTable(conn); err != nil {
		t.Fatalf("createVersionTable failed: %v", err)
	}
	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := migrationV1(tx); err != nil {
		t.Fatalf("migrationV1 failed: %v", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (1)"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if err := InitSchema(conn); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	v, _ := CurrentVersion(conn)
	if v != 3 {
		t.Errorf("version = %d, want 3", v)
	}
	if _, err := conn.Exec("INSERT INTO handoffs (case_id, hospital_id, attempts, last_error) VALUES ('CASE-1', 'H1', 2, 'timeout')"); err != nil {
		t.Errorf("retry columns missing after migration: %v", err)
	}
	if _, err := conn.Exec("INSERT INTO local_requests (id, case_id) VALUES ('REQ-0001', 'CASE-1')"); err != nil {
		t.Errorf("local store missing after migration: %v", err)
	}
}
