package primary

import "context"

// LogService defines the primary port for the decision log.
type LogService interface {
	// ListDecisions retrieves decisions matching the given filters.
	ListDecisions(ctx context.Context, filters DecisionFilters) ([]*DecisionEntry, error)

	// GetDecision retrieves a single decision by ID.
	GetDecision(ctx context.Context, id string) (*DecisionEntry, error)

	// PruneDecisions deletes decisions older than the specified number of days.
	PruneDecisions(ctx context.Context, olderThanDays int) (int, error)
}

// DecisionEntry represents a logged decision at the port boundary.
type DecisionEntry struct {
	ID         string
	CaseID     string
	HospitalID string
	Decision   string
	Source     string
	Reason     string
	ActorID    string
	CreatedAt  string
}

// DecisionFilters contains filter options for querying decisions.
type DecisionFilters struct {
	CaseID     string
	HospitalID string
	Decision   string
	Limit      int
}
