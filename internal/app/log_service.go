package app

import (
	"context"
	"fmt"

	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// LogServiceImpl implements the LogService interface.
type LogServiceImpl struct {
	decisions secondary.DecisionLog
}

// NewLogService creates a new LogService with injected dependencies.
func NewLogService(decisions secondary.DecisionLog) *LogServiceImpl {
	return &LogServiceImpl{
		decisions: decisions,
	}
}

// ListDecisions retrieves decisions matching the given filters.
func (s *LogServiceImpl) ListDecisions(ctx context.Context, filters primary.DecisionFilters) ([]*primary.DecisionEntry, error) {
	records, err := s.decisions.List(ctx, secondary.DecisionFilters{
		CaseID:     filters.CaseID,
		HospitalID: filters.HospitalID,
		Decision:   filters.Decision,
		Limit:      filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	entries := make([]*primary.DecisionEntry, len(records))
	for i, r := range records {
		entries[i] = s.recordToEntry(r)
	}
	return entries, nil
}

// GetDecision retrieves a single decision by ID.
func (s *LogServiceImpl) GetDecision(ctx context.Context, id string) (*primary.DecisionEntry, error) {
	record, err := s.decisions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.recordToEntry(record), nil
}

// PruneDecisions deletes decisions older than the specified number of days.
func (s *LogServiceImpl) PruneDecisions(ctx context.Context, olderThanDays int) (int, error) {
	return s.decisions.PruneOlderThan(ctx, olderThanDays)
}

// Helper methods

func (s *LogServiceImpl) recordToEntry(r *secondary.DecisionRecord) *primary.DecisionEntry {
	return &primary.DecisionEntry{
		ID:         r.ID,
		CaseID:     r.CaseID,
		HospitalID: r.HospitalID,
		Decision:   r.Decision,
		Source:     r.Source,
		Reason:     r.Reason,
		ActorID:    r.ActorID,
		CreatedAt:  r.CreatedAt,
	}
}

// Ensure LogServiceImpl implements the interface
var _ primary.LogService = (*LogServiceImpl)(nil)
