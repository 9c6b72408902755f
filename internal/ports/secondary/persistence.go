// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// HandoffJournal defines the secondary port for the local handoff journal.
// There is at most one entry per case; every completed handoff step is
// checkpointed so a retry resumes where the previous attempt stopped.
type HandoffJournal interface {
	// Get retrieves the journal entry of a case. Returns ErrNotFound if absent.
	Get(ctx context.Context, caseID string) (*HandoffRecord, error)

	// Save inserts or updates the entry of a case.
	Save(ctx context.Context, record *HandoffRecord) error

	// List retrieves entries, newest first.
	List(ctx context.Context, filters HandoffFilters) ([]*HandoffRecord, error)
}

// HandoffRecord represents a handoff as stored in the journal.
type HandoffRecord struct {
	CaseID       string
	HospitalID   string
	HospitalName string
	CallRef      string
	DistanceKm   float64
	EtaMinutes   int
	CasePayload  string // JSON snapshot of the case, used to replay the request step
	RequestID    string
	AssignmentID string
	SessionID    string
	Local        bool // Session id was generated locally
	Synced       bool // Store confirmed request, assignment and session
	Attempts     int
	LastError    string
	CreatedAt    string
	UpdatedAt    string
}

// HandoffFilters contains filter options for querying the journal.
type HandoffFilters struct {
	UnsyncedOnly bool
	Limit        int
}

// DecisionLog defines the secondary port for the append-only decision log.
type DecisionLog interface {
	// Create appends a decision.
	Create(ctx context.Context, record *DecisionRecord) error

	// GetByID retrieves a decision by its ID.
	GetByID(ctx context.Context, id string) (*DecisionRecord, error)

	// List retrieves decisions matching the given filters, newest first.
	List(ctx context.Context, filters DecisionFilters) ([]*DecisionRecord, error)

	// GetNextID returns the next available decision ID.
	GetNextID(ctx context.Context) (string, error)

	// PruneOlderThan deletes decisions older than the given number of days.
	PruneOlderThan(ctx context.Context, days int) (int, error)
}

// DecisionRecord represents one applied resolution.
type DecisionRecord struct {
	ID         string
	CaseID     string
	HospitalID string
	Decision   string // approved | rejected
	Source     string // poll | push | timeout | manual | dial
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
