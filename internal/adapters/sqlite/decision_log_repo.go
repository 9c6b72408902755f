package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/safebridge/internal/ports/secondary"
)

// DecisionLogRepository implements secondary.DecisionLog with SQLite.
// Decisions are immutable - no Update operations.
type DecisionLogRepository struct {
	db *sql.DB
}

// NewDecisionLogRepository creates a new SQLite decision log repository.
func NewDecisionLogRepository(db *sql.DB) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

// Create persists a new decision.
func (r *DecisionLogRepository) Create(ctx context.Context, d *secondary.DecisionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decision_log (id, case_id, hospital_id, decision, source, reason, actor_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.CaseID,
		d.HospitalID,
		d.Decision,
		d.Source,
		nullString(d.Reason),
		nullString(d.ActorID),
	)
	if err != nil {
		return fmt.Errorf("failed to create decision: %w", err)
	}
	return nil
}

// GetByID retrieves a decision by its ID.
func (r *DecisionLogRepository) GetByID(ctx context.Context, id string) (*secondary.DecisionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, case_id, hospital_id, decision, source, reason, actor_id, created_at FROM decision_log WHERE id = ?`,
		id,
	)
	record, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("decision %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return record, nil
}

// List retrieves decisions matching the given filters.
func (r *DecisionLogRepository) List(ctx context.Context, filters secondary.DecisionFilters) ([]*secondary.DecisionRecord, error) {
	query := `SELECT id, case_id, hospital_id, decision, source, reason, actor_id, created_at FROM decision_log WHERE 1=1`
	args := []any{}

	if filters.CaseID != "" {
		query += " AND case_id = ?"
		args = append(args, filters.CaseID)
	}

	if filters.HospitalID != "" {
		query += " AND hospital_id = ?"
		args = append(args, filters.HospitalID)
	}

	if filters.Decision != "" {
		query += " AND decision = ?"
		args = append(args, filters.Decision)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*secondary.DecisionRecord
	for rows.Next() {
		record, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, record)
	}
	return decisions, rows.Err()
}

func scanDecision(s rowScanner) (*secondary.DecisionRecord, error) {
	var (
		reason, actorID sql.NullString
		createdAt       time.Time
	)
	record := &secondary.DecisionRecord{}
	err := s.Scan(&record.ID,
		&record.CaseID,
		&record.HospitalID,
		&record.Decision,
		&record.Source,
		&reason,
		&actorID,
		&createdAt)
	if err != nil {
		return nil, err
	}
	record.Reason = reason.String
	record.ActorID = actorID.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	return record, nil
}

// GetNextID returns the next available decision ID.
func (r *DecisionLogRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "decision_log", "DEC-")
}

// PruneOlderThan deletes decisions older than the given number of days.
func (r *DecisionLogRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM decision_log WHERE created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune decisions: %w", err)
	}

	count, _ := result.RowsAffected()
	return int(count), nil
}

// nextID returns prefix followed by one more than the highest numeric suffix in table.
func nextID(ctx context.Context, db *sql.DB, table, prefix string) (string, error) {
	var maxID int
	prefixLen := len(prefix) + 1
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM %s", prefixLen, table),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next %s ID: %w", table, err)
	}

	return fmt.Sprintf("%s%04d", prefix, maxID+1), nil
}

// Ensure DecisionLogRepository implements the interface
var _ secondary.DecisionLog = (*DecisionLogRepository)(nil)
