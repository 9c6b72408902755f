// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

import "time"

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// DialEffect asks the shell to place an acceptance call.
// A zero Delay dials now; otherwise the dial is scheduled and re-validated when due.
type DialEffect struct {
	HospitalID string
	Delay      time.Duration
}

func (e DialEffect) EffectType() string { return "dial" }

// CancelAttemptEffect stops the timers and polling of outstanding call attempts.
type CancelAttemptEffect struct {
	HospitalIDs []string
}

func (e CancelAttemptEffect) EffectType() string { return "cancel_attempt" }

// HaltEffect stops automation: any scheduled dial is dropped.
type HaltEffect struct {
	Reason string
}

func (e HaltEffect) EffectType() string { return "halt" }

// HydrateRoutesEffect refreshes routing metadata for newly absorbed candidates.
type HydrateRoutesEffect struct {
	CaseID      string
	HospitalIDs []string
}

func (e HydrateRoutesEffect) EffectType() string { return "hydrate_routes" }

// RecordDecisionEffect appends an applied resolution to the decision log.
type RecordDecisionEffect struct {
	CaseID     string
	HospitalID string
	Decision   string
	Source     string
	Reason     string
}

func (e RecordDecisionEffect) EffectType() string { return "record_decision" }

// HandoffEffect converts an approval into a persisted session.
type HandoffEffect struct {
	CaseID     string
	HospitalID string
	CallRef    string
}

func (e HandoffEffect) EffectType() string { return "handoff" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
