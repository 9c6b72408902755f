package primary

import (
	"context"

	"github.com/example/safebridge/internal/core/dispatch"
)

// HandoffService defines the primary port for handing an approved case to the session layer.
type HandoffService interface {
	// Handoff turns an approval into a request/assignment/session triple.
	// It is idempotent per case and degrades to a local session instead of failing.
	Handoff(ctx context.Context, req HandoffRequest) (dispatch.SessionRef, error)

	// Resync retries the store steps of a journaled handoff and reports
	// failure instead of degrading.
	Resync(ctx context.Context, caseID string) (dispatch.SessionRef, error)

	// GetHandoff retrieves the handoff of a case.
	GetHandoff(ctx context.Context, caseID string) (*Handoff, error)

	// ListHandoffs lists handoffs, optionally only those still unsynced.
	ListHandoffs(ctx context.Context, unsyncedOnly bool, limit int) ([]*Handoff, error)
}

// HandoffRequest contains parameters for a handoff.
type HandoffRequest struct {
	Case     dispatch.CaseInfo
	Hospital dispatch.Candidate
	CallRef  string
}

// Handoff represents a handoff entity at the port boundary.
type Handoff struct {
	CaseID       string
	HospitalID   string
	HospitalName string
	RequestID    string
	AssignmentID string
	SessionID    string
	Local        bool
	Synced       bool
	Attempts     int
	LastError    string
	CreatedAt    string
	UpdatedAt    string
}

// ReconcileService defines the primary port for syncing local-only handoffs.
type ReconcileService interface {
	// ReconcileOnce retries every unsynced handoff once.
	ReconcileOnce(ctx context.Context) (*ReconcileReport, error)

	// Run reconciles periodically until ctx is done.
	Run(ctx context.Context) error
}

// ReconcileReport summarizes one reconciliation pass.
type ReconcileReport struct {
	Checked int
	Synced  int
	Failed  int
}
