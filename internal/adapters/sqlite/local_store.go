package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/example/safebridge/internal/ports/secondary"
)

// LocalAssignmentStore implements secondary.AssignmentStore on the local
// database. It stands in for the backend when none is configured.
type LocalAssignmentStore struct {
	db *sql.DB
	mu sync.Mutex // serializes id allocation
}

// NewLocalAssignmentStore creates a new SQLite assignment store.
func NewLocalAssignmentStore(db *sql.DB) *LocalAssignmentStore {
	return &LocalAssignmentStore{db: db}
}

// CreateRequest persists the emergency request of a case.
func (s *LocalAssignmentStore) CreateRequest(ctx context.Context, req secondary.RequestRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := nextID(ctx, s.db, "local_requests", "REQ-")
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO local_requests (id, case_id, team_id, patient_sex, patient_age, pre_ktas, transcript, summary, lat, lon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		req.CaseID,
		nullString(req.TeamID),
		nullString(req.PatientSex),
		req.PatientAge,
		req.PreKTAS,
		nullString(req.Transcript),
		nullString(req.Summary),
		req.Lat,
		req.Lon,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	return id, nil
}

// CreateAssignment links a request to a hospital.
func (s *LocalAssignmentStore) CreateAssignment(ctx context.Context, a secondary.AssignmentRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := nextID(ctx, s.db, "local_assignments", "ASG-")
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO local_assignments (id, request_id, hospital_id, distance_km, eta_minutes, call_ref) VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		a.RequestID,
		a.HospitalID,
		a.DistanceKm,
		a.EtaMinutes,
		nullString(a.CallRef),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create assignment: %w", err)
	}
	return id, nil
}

// UpdateAssignmentStatus records the hospital response. Approving an
// assignment opens its session, which is returned.
func (s *LocalAssignmentStore) UpdateAssignmentStatus(ctx context.Context, assignmentID, status string) (string, error) {
	switch status {
	case secondary.AssignmentPending, secondary.AssignmentApproved, secondary.AssignmentRejected:
	default:
		return "", fmt.Errorf("invalid assignment status %q", status)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE local_assignments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, assignmentID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update assignment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return "", fmt.Errorf("assignment %s: %w", assignmentID, secondary.ErrNotFound)
	}

	if status != secondary.AssignmentApproved {
		return "", nil
	}
	var requestID string
	err = s.db.QueryRowContext(ctx, "SELECT request_id FROM local_assignments WHERE id = ?", assignmentID).Scan(&requestID)
	if err != nil {
		return "", fmt.Errorf("failed to get assignment: %w", err)
	}
	return s.GetOrCreateSession(ctx, requestID, assignmentID)
}

// GetOrCreateSession returns the session of an assignment, creating it if needed.
func (s *LocalAssignmentStore) GetOrCreateSession(ctx context.Context, requestID, assignmentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM local_sessions WHERE assignment_id = ?", assignmentID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	id, err = nextID(ctx, s.db, "local_sessions", "SES-")
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO local_sessions (id, request_id, assignment_id) VALUES (?, ?, ?)",
		id, requestID, assignmentID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// Ensure LocalAssignmentStore implements the interface
var _ secondary.AssignmentStore = (*LocalAssignmentStore)(nil)
