// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/safebridge/internal/ports/secondary"
)

// HandoffRepository implements secondary.HandoffJournal with SQLite.
// There is one row per case; Save upserts it.
type HandoffRepository struct {
	db *sql.DB
}

// NewHandoffRepository creates a new SQLite handoff journal.
func NewHandoffRepository(db *sql.DB) *HandoffRepository {
	return &HandoffRepository{db: db}
}

const handoffColumns = `case_id, hospital_id, hospital_name, call_ref, distance_km, eta_minutes, case_payload,
	request_id, assignment_id, session_id, local, synced, attempts, last_error, created_at, updated_at`

// Save inserts or updates the journal entry of a case.
func (r *HandoffRepository) Save(ctx context.Context, h *secondary.HandoffRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO handoffs (case_id, hospital_id, hospital_name, call_ref, distance_km, eta_minutes, case_payload,
			request_id, assignment_id, session_id, local, synced, attempts, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(case_id) DO UPDATE SET
			hospital_id = excluded.hospital_id,
			hospital_name = excluded.hospital_name,
			call_ref = excluded.call_ref,
			distance_km = excluded.distance_km,
			eta_minutes = excluded.eta_minutes,
			case_payload = excluded.case_payload,
			request_id = excluded.request_id,
			assignment_id = excluded.assignment_id,
			session_id = excluded.session_id,
			local = excluded.local,
			synced = excluded.synced,
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			updated_at = CURRENT_TIMESTAMP`,
		h.CaseID,
		h.HospitalID,
		nullString(h.HospitalName),
		nullString(h.CallRef),
		h.DistanceKm,
		h.EtaMinutes,
		nullString(h.CasePayload),
		nullString(h.RequestID),
		nullString(h.AssignmentID),
		nullString(h.SessionID),
		h.Local,
		h.Synced,
		h.Attempts,
		nullString(h.LastError),
	)
	if err != nil {
		return fmt.Errorf("failed to save handoff: %w", err)
	}
	return nil
}

// Get retrieves the journal entry of a case.
func (r *HandoffRepository) Get(ctx context.Context, caseID string) (*secondary.HandoffRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+handoffColumns+" FROM handoffs WHERE case_id = ?",
		caseID,
	)
	record, err := scanHandoff(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("handoff for %s: %w", caseID, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handoff: %w", err)
	}
	return record, nil
}

// List retrieves journal entries, newest first.
func (r *HandoffRepository) List(ctx context.Context, filters secondary.HandoffFilters) ([]*secondary.HandoffRecord, error) {
	query := "SELECT " + handoffColumns + " FROM handoffs WHERE 1=1"
	args := []any{}

	if filters.UnsyncedOnly {
		query += " AND synced = 0"
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}
	defer rows.Close()

	var handoffs []*secondary.HandoffRecord
	for rows.Next() {
		record, err := scanHandoff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan handoff: %w", err)
		}
		handoffs = append(handoffs, record)
	}
	return handoffs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandoff(s rowScanner) (*secondary.HandoffRecord, error) {
	var (
		name, callRef, payload                  sql.NullString
		requestID, assignmentID, sessionID, msg sql.NullString
		createdAt, updatedAt                    time.Time
	)
	record := &secondary.HandoffRecord{}
	err := s.Scan(
		&record.CaseID,
		&record.HospitalID,
		&name,
		&callRef,
		&record.DistanceKm,
		&record.EtaMinutes,
		&payload,
		&requestID,
		&assignmentID,
		&sessionID,
		&record.Local,
		&record.Synced,
		&record.Attempts,
		&msg,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.HospitalName = name.String
	record.CallRef = callRef.String
	record.CasePayload = payload.String
	record.RequestID = requestID.String
	record.AssignmentID = assignmentID.String
	record.SessionID = sessionID.String
	record.LastError = msg.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure HandoffRepository implements the interface
var _ secondary.HandoffJournal = (*HandoffRepository)(nil)
