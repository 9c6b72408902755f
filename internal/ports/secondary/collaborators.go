package secondary

import (
	"context"

	"github.com/example/safebridge/internal/core/dispatch"
)

// HospitalSearch defines the secondary port for the hospital search collaborator.
type HospitalSearch interface {
	// Search returns the primary, backup and neighbor tiers for a case.
	// Any tier may be empty.
	Search(ctx context.Context, query SearchQuery) (dispatch.Tiers, error)
}

// SearchQuery is what the search collaborator needs to rank hospitals.
type SearchQuery struct {
	CaseID  string
	Lat     float64
	Lon     float64
	Symptom string
	Summary string
	PreKTAS int
}

// Telephony defines the secondary port for the ARS collaborator.
type Telephony interface {
	// PlaceAcceptanceCall dials the hospital and reads the narration.
	// Returns the external call reference.
	PlaceAcceptanceCall(ctx context.Context, candidate dispatch.Candidate, narration string) (string, error)

	// GetCallStatus returns the digit pressed so far and the line status.
	GetCallStatus(ctx context.Context, callRef string) (CallStatus, error)
}

// CallStatus is the polled state of one ARS call.
type CallStatus struct {
	Digit  string // "1", "2" or empty
	Status string // ringing | in-progress | completed | busy | failed | no-answer | canceled
}

// Push event names.
const (
	EventHospitalApproved = "hospital_approved"
	EventHospitalRejected = "hospital_rejected"
)

// PushEvent is a hospital decision delivered over the real-time channel.
type PushEvent struct {
	Event      string `json:"event"`
	CaseID     string `json:"case_id,omitempty"`
	HospitalID string `json:"hospital_id"`
	CallRef    string `json:"call_sid,omitempty"`
}

// EventChannel defines the secondary port for the push channel.
// Subscriptions are scoped to one case and must be closed when the case closes.
type EventChannel interface {
	Join(ctx context.Context, caseID string) (Subscription, error)
}

// Subscription is a live case-scoped push subscription.
type Subscription interface {
	Events() <-chan PushEvent
	Close() error
}

// EventPublisher publishes push events, for adapters that also act as the hospital side.
type EventPublisher interface {
	Publish(ctx context.Context, event PushEvent) error
}

// AssignmentStore defines the secondary port for the request/assignment/session store.
type AssignmentStore interface {
	// CreateRequest persists the emergency request of a case and returns its id.
	CreateRequest(ctx context.Context, req RequestRecord) (string, error)

	// CreateAssignment links a request to a hospital and returns the assignment id.
	CreateAssignment(ctx context.Context, assignment AssignmentRecord) (string, error)

	// UpdateAssignmentStatus records the hospital response. The store may
	// return the session it created as a consequence (empty otherwise).
	UpdateAssignmentStatus(ctx context.Context, assignmentID, status string) (string, error)

	// GetOrCreateSession returns the session of a request/assignment pair,
	// creating it if none exists.
	GetOrCreateSession(ctx context.Context, requestID, assignmentID string) (string, error)
}

// Assignment statuses.
const (
	AssignmentPending  = "pending"
	AssignmentApproved = "approved"
	AssignmentRejected = "rejected"
)

// RequestRecord is an emergency request as sent to the store.
type RequestRecord struct {
	CaseID     string
	TeamID     string
	PatientSex string
	PatientAge int
	PreKTAS    int
	Transcript string
	Summary    string
	Lat        float64
	Lon        float64
}

// AssignmentRecord is a request-to-hospital assignment as sent to the store.
type AssignmentRecord struct {
	RequestID  string
	HospitalID string
	DistanceKm float64
	EtaMinutes int
	CallRef    string
}

// RouteService defines the secondary port for route metadata.
type RouteService interface {
	// Routes returns distance and ETA from origin to each candidate.
	// Candidates the service cannot route are omitted.
	Routes(ctx context.Context, origin Location, candidates []dispatch.Candidate) (map[string]dispatch.RouteInfo, error)
}

// Location is a WGS84 point.
type Location struct {
	Lat float64
	Lon float64
}
