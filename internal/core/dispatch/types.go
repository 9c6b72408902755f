// Package dispatch contains the pure business logic for hospital acceptance dispatch.
// This is part of the Functional Core - no I/O, only state transitions that
// describe their side effects as data (see internal/core/effects).
package dispatch

import "time"

// Tier is the membership pool a candidate hospital was introduced from.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierBackup   Tier = "backup"
	TierNeighbor Tier = "neighbor"
)

// ApprovalStatus is the per-hospital acceptance status within one dispatch round.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusCalling  ApprovalStatus = "calling"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Phase is the state of the dispatch state machine for one case.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseDispatching      Phase = "dispatching"
	PhaseAwaitingResponse Phase = "awaiting_response"
	PhaseApproved         Phase = "approved"
	PhaseExhausted        Phase = "exhausted"
	PhaseCancelled        Phase = "cancelled"
)

// Terminal reports whether no further automatic or manual resolution is accepted.
func (p Phase) Terminal() bool {
	return p == PhaseApproved || p == PhaseExhausted || p == PhaseCancelled
}

// Decision is the outcome a resolution carries.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Source identifies which channel produced a resolution.
type Source string

const (
	SourcePoll    Source = "poll"
	SourcePush    Source = "push"
	SourceTimeout Source = "timeout"
	SourceManual  Source = "manual"
	// SourceDial is used when placing the call itself failed after retries.
	SourceDial Source = "dial"
)

// Automated reports whether the source is one of the racing automatic channels.
func (s Source) Automated() bool {
	return s != SourceManual
}

// Reason distinguishes why a hospital ended up approved or rejected.
type Reason string

const (
	ReasonAccepted       Reason = "accepted"
	ReasonDeclined       Reason = "declined"
	ReasonLineFailed     Reason = "line_failed"
	ReasonTimeout        Reason = "timeout"
	ReasonDispatchFailed Reason = "dispatch_failed"
	ReasonManual         Reason = "manual"
)

// Candidate is a hospital considered for acceptance.
// Everything except the routing metadata (DistanceKm, EtaMinutes) is fixed once fetched.
type Candidate struct {
	HospitalID     string // hpid
	Name           string
	Address        string
	Phone          string
	EmergencyClass string
	Lat            float64
	Lon            float64
	DistanceKm     float64
	EtaMinutes     int
	Tier           Tier
}

// Tiers is the three-pool result of a hospital search.
type Tiers struct {
	Primary  []Candidate
	Backup   []Candidate
	Neighbor []Candidate
}

// Empty reports whether no tier holds any candidate.
func (t Tiers) Empty() bool {
	return len(t.Primary) == 0 && len(t.Backup) == 0 && len(t.Neighbor) == 0
}

// RouteInfo is refreshed routing metadata for one hospital.
type RouteInfo struct {
	DistanceKm float64
	EtaMinutes int
}

// Resolution is a decision for one hospital delivered by one source.
type Resolution struct {
	HospitalID string
	Decision   Decision
	Source     Source
	Reason     Reason
	CallRef    string // Optional; when set it must match the active call
}

// SessionRef identifies the communication session a case was handed off to.
type SessionRef struct {
	SessionID    string
	RequestID    string
	AssignmentID string
	HospitalID   string
	Local        bool // Local-only session; the store has not confirmed it
	Synced       bool
}

// Options configures a dispatch round.
type Options struct {
	AutoDial          bool
	InterAttemptDelay time.Duration
}
