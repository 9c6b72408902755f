// Package mockars is an in-process ARS used when no telephony backend is
// configured. Calls are answered by the operator pressing digits on behalf
// of the hospital; every press is both visible to polling and pushed.
package mockars

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// ErrNoActiveCall is returned when a hospital has no call to answer.
var ErrNoActiveCall = errors.New("no active call")

const eventBuffer = 16

// Call is one simulated acceptance call.
type Call struct {
	Ref        string
	HospitalID string
	Name       string
	Narration  string
	Digit      string
	Status     string
}

// ARS implements Telephony, EventChannel and EventPublisher in memory.
type ARS struct {
	mu     sync.Mutex
	calls  map[string]*Call
	latest map[string]string // hpid -> newest call ref
	order  []string
	subs   map[*subscription]struct{}
}

// New creates an empty mock ARS.
func New() *ARS {
	return &ARS{
		calls:  make(map[string]*Call),
		latest: make(map[string]string),
		subs:   make(map[*subscription]struct{}),
	}
}

func (a *ARS) PlaceAcceptanceCall(ctx context.Context, candidate dispatch.Candidate, narration string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := "MOCK-" + uuid.NewString()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[ref] = &Call{
		Ref:        ref,
		HospitalID: candidate.HospitalID,
		Name:       candidate.Name,
		Narration:  narration,
		Status:     "ringing",
	}
	a.latest[candidate.HospitalID] = ref
	a.order = append(a.order, ref)
	return ref, nil
}

func (a *ARS) GetCallStatus(ctx context.Context, callRef string) (secondary.CallStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	call, ok := a.calls[callRef]
	if !ok {
		return secondary.CallStatus{}, fmt.Errorf("call %s: %w", callRef, secondary.ErrNotFound)
	}
	return secondary.CallStatus{Digit: call.Digit, Status: call.Status}, nil
}

// Press answers the newest call to a hospital with digit 1 (accept) or 2 (decline).
func (a *ARS) Press(ctx context.Context, hospitalID, digit string) error {
	var event string
	switch digit {
	case "1":
		event = secondary.EventHospitalApproved
	case "2":
		event = secondary.EventHospitalRejected
	default:
		return fmt.Errorf("invalid digit %q (want 1 or 2)", digit)
	}

	a.mu.Lock()
	call, err := a.activeCall(hospitalID)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	call.Digit = digit
	call.Status = "completed"
	ref := call.Ref
	a.mu.Unlock()

	return a.Publish(ctx, secondary.PushEvent{Event: event, HospitalID: hospitalID, CallRef: ref})
}

// Hangup ends the newest call to a hospital with a line status such as busy or no-answer.
func (a *ARS) Hangup(hospitalID, status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	call, err := a.activeCall(hospitalID)
	if err != nil {
		return err
	}
	call.Status = status
	return nil
}

func (a *ARS) activeCall(hospitalID string) (*Call, error) {
	ref, ok := a.latest[hospitalID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", hospitalID, ErrNoActiveCall)
	}
	call := a.calls[ref]
	if call.Digit != "" || call.Status != "ringing" {
		return nil, fmt.Errorf("%s: %w", hospitalID, ErrNoActiveCall)
	}
	return call, nil
}

// Calls returns the calls placed so far, oldest first.
func (a *ARS) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, 0, len(a.order))
	for _, ref := range a.order {
		out = append(out, *a.calls[ref])
	}
	return out
}

// Ringing returns the hospitals with an unanswered call, sorted.
func (a *ARS) Ringing() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for hpid, ref := range a.latest {
		if c := a.calls[ref]; c.Digit == "" && c.Status == "ringing" {
			out = append(out, hpid)
		}
	}
	sort.Strings(out)
	return out
}

// Join subscribes to events. The mock serves one case per process, so the
// case id only tags delivered events.
func (a *ARS) Join(ctx context.Context, caseID string) (secondary.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &subscription{ars: a, caseID: caseID, events: make(chan secondary.PushEvent, eventBuffer)}
	a.mu.Lock()
	a.subs[s] = struct{}{}
	a.mu.Unlock()
	return s, nil
}

// Publish fans an event out to every subscription. Full buffers drop the event.
func (a *ARS) Publish(ctx context.Context, event secondary.PushEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for s := range a.subs {
		ev := event
		if ev.CaseID == "" {
			ev.CaseID = s.caseID
		}
		select {
		case s.events <- ev:
		default:
		}
	}
	return nil
}

type subscription struct {
	ars    *ARS
	caseID string
	events chan secondary.PushEvent
}

func (s *subscription) Events() <-chan secondary.PushEvent { return s.events }

func (s *subscription) Close() error {
	s.ars.mu.Lock()
	defer s.ars.mu.Unlock()
	if _, ok := s.ars.subs[s]; ok {
		delete(s.ars.subs, s)
		close(s.events)
	}
	return nil
}

var (
	_ secondary.Telephony      = (*ARS)(nil)
	_ secondary.EventChannel   = (*ARS)(nil)
	_ secondary.EventPublisher = (*ARS)(nil)
)
