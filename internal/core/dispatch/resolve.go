package dispatch

import (
	"fmt"

	"github.com/example/safebridge/internal/core/effects"
)

// Outcome is the result of offering a resolution or command to the state.
type Outcome struct {
	Applied   bool
	Discarded string // Why the resolution was ignored (empty when applied)
	Err       error  // Set only for refused manual overrides
	Effects   []effects.Effect
}

func discarded(format string, args ...any) Outcome {
	return Outcome{Discarded: fmt.Sprintf(format, args...)}
}

// Resolve is the single arbitration gate for every decision about a hospital.
//
// The first decision for a calling hospital wins; later decisions from any
// automated source are discarded. Manual decisions are accepted for pending
// or calling hospitals while the case is not terminal.
func (s *State) Resolve(r Resolution) Outcome {
	st, known := s.status[r.HospitalID]

	if r.Source == SourceManual {
		ctx := ManualContext{
			HospitalID: r.HospitalID,
			Known:      known,
			Phase:      s.Phase,
			Status:     st,
			Decision:   r.Decision,
		}
		if guard := CanApplyManual(ctx); !guard.Allowed {
			return Outcome{Discarded: guard.Reason, Err: manualRefusal(ctx, guard)}
		}
		if r.Reason == "" {
			r.Reason = ReasonManual
		}
	} else {
		if !known {
			return discarded("hospital %s is not a candidate", r.HospitalID)
		}
		if s.Phase.Terminal() {
			return discarded("case is %s", s.Phase)
		}
		if st != StatusCalling {
			return discarded("hospital %s is %s, not calling", r.HospitalID, st)
		}
		if r.CallRef != "" && s.callRefs[r.HospitalID] != "" && r.CallRef != s.callRefs[r.HospitalID] {
			return discarded("call %s is not the active call of %s", r.CallRef, r.HospitalID)
		}
	}

	switch r.Decision {
	case DecisionApproved:
		if r.Reason == "" {
			r.Reason = ReasonAccepted
		}
		return s.approve(r)
	case DecisionRejected:
		return s.reject(r)
	default:
		return discarded("unknown decision %q", r.Decision)
	}
}

func (s *State) approve(r Resolution) Outcome {
	id := r.HospitalID
	callRef := s.callRefs[id]

	var cancel []string
	for _, c := range s.queue {
		if s.status[c.HospitalID] != StatusCalling {
			continue
		}
		cancel = append(cancel, c.HospitalID)
		if c.HospitalID != id {
			// Competing attempts are frozen, not rejected.
			s.status[c.HospitalID] = StatusPending
		}
		delete(s.callRefs, c.HospitalID)
	}

	s.status[id] = StatusApproved
	s.reasons[id] = r.Reason
	approved := s.queue[s.index[id]]
	s.approved = &approved
	s.pendingDial = ""
	s.Phase = PhaseApproved

	effs := []effects.Effect{effects.HaltEffect{Reason: "approved"}}
	if len(cancel) > 0 {
		effs = append(effs, effects.CancelAttemptEffect{HospitalIDs: cancel})
	}
	effs = append(effs,
		s.record(r),
		effects.HandoffEffect{CaseID: s.CaseID, HospitalID: id, CallRef: callRef},
	)
	return Outcome{Applied: true, Effects: effs}
}

func (s *State) reject(r Resolution) Outcome {
	id := r.HospitalID
	wasCalling := s.status[id] == StatusCalling
	if r.Reason == "" {
		r.Reason = ReasonDeclined
	}

	s.status[id] = StatusRejected
	s.reasons[id] = r.Reason
	if _, ok := s.rejectedSet[id]; !ok {
		s.rejectedSet[id] = struct{}{}
		s.rejected = append(s.rejected, id)
	}
	delete(s.callRefs, id)

	var effs []effects.Effect
	if wasCalling {
		effs = append(effs, effects.CancelAttemptEffect{HospitalIDs: []string{id}})
	}
	if s.pendingDial == id {
		s.pendingDial = ""
		effs = append(effs, effects.HaltEffect{Reason: "scheduled candidate rejected"})
	}
	effs = append(effs, s.record(r))

	if s.Phase == PhaseAwaitingResponse && !s.hasCalling() {
		s.Phase = PhaseDispatching
	}
	effs = append(effs, s.Advance()...)
	return Outcome{Applied: true, Effects: effs}
}

func (s *State) record(r Resolution) effects.Effect {
	return effects.RecordDecisionEffect{
		CaseID:     s.CaseID,
		HospitalID: r.HospitalID,
		Decision:   string(r.Decision),
		Source:     string(r.Source),
		Reason:     string(r.Reason),
	}
}

// Advance moves automation forward when nothing is in flight: it picks the
// next eligible candidate and dials it (immediately for the first dial of the
// round, after the inter-attempt delay otherwise), or marks the case exhausted.
func (s *State) Advance() []effects.Effect {
	if s.Phase.Terminal() || s.approved != nil {
		return nil
	}
	if s.hasCalling() || s.pendingDial != "" {
		return nil
	}

	c, effs, ok := s.NextEligible()
	if !ok {
		if s.exhausted {
			s.Phase = PhaseExhausted
			effs = append(effs,
				effects.HaltEffect{Reason: "exhausted"},
				effects.LogEffect{
					Level:   "info",
					Message: "no candidates left; manual re-search required",
					Fields:  map[string]any{"case_id": s.CaseID, "rejected": len(s.rejected)},
				},
			)
		}
		return effs
	}

	s.Phase = PhaseDispatching
	if !s.opts.AutoDial {
		return effs
	}

	if s.dials == 0 || s.opts.InterAttemptDelay <= 0 {
		s.markCalling(c.HospitalID)
		return append(effs, effects.DialEffect{HospitalID: c.HospitalID})
	}
	s.pendingDial = c.HospitalID
	return append(effs, effects.DialEffect{HospitalID: c.HospitalID, Delay: s.opts.InterAttemptDelay})
}

// BeginDial is called when a scheduled dial comes due. The target is
// re-validated: if the operator intervened meanwhile, automation re-plans.
func (s *State) BeginDial(hospitalID string) []effects.Effect {
	if s.pendingDial != hospitalID {
		return nil
	}
	s.pendingDial = ""
	if s.Phase.Terminal() || s.approved != nil {
		return nil
	}
	if s.status[hospitalID] != StatusPending {
		return s.Advance()
	}
	s.markCalling(hospitalID)
	return []effects.Effect{effects.DialEffect{HospitalID: hospitalID}}
}

func (s *State) markCalling(hospitalID string) {
	s.status[hospitalID] = StatusCalling
	s.dials++
	s.Phase = PhaseAwaitingResponse
}
