package dispatch

import "github.com/example/safebridge/internal/core/effects"

// State is the DispatchState of one case for one dispatch round.
// It is owned by a single writer; every mutation goes through Resolve,
// Advance, BeginDial, AttachCall, Absorb, UpdateRouting or Cancel.
type State struct {
	CaseID string
	Phase  Phase

	opts Options

	queue    []Candidate
	index    map[string]int
	status   map[string]ApprovalStatus
	reasons  map[string]Reason
	callRefs map[string]string

	rejected    []string
	rejectedSet map[string]struct{}
	approved    *Candidate
	exhausted   bool

	backup   []Candidate
	neighbor []Candidate

	dials       int    // Automatic dials started this round
	pendingDial string // Candidate waiting out the inter-attempt delay
}

// NewState starts a dispatch round from a fresh search result.
// Primary candidates are queued immediately; backup and neighbor are held in
// reserve and pulled lazily when the queue runs dry.
func NewState(caseID string, tiers Tiers, opts Options) *State {
	s := &State{
		CaseID:      caseID,
		Phase:       PhaseDispatching,
		opts:        opts,
		index:       make(map[string]int),
		status:      make(map[string]ApprovalStatus),
		reasons:     make(map[string]Reason),
		callRefs:    make(map[string]string),
		rejectedSet: make(map[string]struct{}),
		backup:      tagTier(tiers.Backup, TierBackup),
		neighbor:    tagTier(tiers.Neighbor, TierNeighbor),
	}
	s.Absorb(tiers.Primary, TierPrimary)
	if tiers.Empty() {
		s.exhausted = true
		s.Phase = PhaseExhausted
	}
	return s
}

func tagTier(cands []Candidate, tier Tier) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		c.Tier = tier
		out = append(out, c)
	}
	return out
}

// Options returns the round configuration.
func (s *State) Options() Options { return s.opts }

// Queue returns a copy of the candidate queue in dispatch order.
func (s *State) Queue() []Candidate {
	out := make([]Candidate, len(s.queue))
	copy(out, s.queue)
	return out
}

// Candidate looks up a queued candidate by hpid.
func (s *State) Candidate(hospitalID string) (Candidate, bool) {
	i, ok := s.index[hospitalID]
	if !ok {
		return Candidate{}, false
	}
	return s.queue[i], true
}

// Status returns the approval status of a queued hospital.
func (s *State) Status(hospitalID string) (ApprovalStatus, bool) {
	st, ok := s.status[hospitalID]
	return st, ok
}

// Reason returns why a hospital was resolved, if it was.
func (s *State) Reason(hospitalID string) Reason { return s.reasons[hospitalID] }

// CallRef returns the external call reference of an active attempt.
func (s *State) CallRef(hospitalID string) string { return s.callRefs[hospitalID] }

// Rejected returns the rejected hospitals in rejection order.
func (s *State) Rejected() []string {
	out := make([]string, len(s.rejected))
	copy(out, s.rejected)
	return out
}

// IsRejected reports whether the hospital is in the rejected set.
func (s *State) IsRejected(hospitalID string) bool {
	_, ok := s.rejectedSet[hospitalID]
	return ok
}

// Approved returns the approved hospital, if any.
func (s *State) Approved() (Candidate, bool) {
	if s.approved == nil {
		return Candidate{}, false
	}
	return *s.approved, true
}

// Calling returns the hospitals with an outstanding call, in queue order.
func (s *State) Calling() []string {
	var out []string
	for _, c := range s.queue {
		if s.status[c.HospitalID] == StatusCalling {
			out = append(out, c.HospitalID)
		}
	}
	return out
}

// PendingDial returns the candidate scheduled behind the inter-attempt delay.
func (s *State) PendingDial() string { return s.pendingDial }

func (s *State) hasCalling() bool {
	for _, st := range s.status {
		if st == StatusCalling {
			return true
		}
	}
	return false
}

// AttachCall records the external call reference once the dial succeeded.
// It returns false when the hospital is no longer calling (the attempt was
// superseded while the dial was in flight).
func (s *State) AttachCall(hospitalID, callRef string) bool {
	if s.status[hospitalID] != StatusCalling {
		return false
	}
	s.callRefs[hospitalID] = callRef
	return true
}

// UpdateRouting refreshes the routing metadata of queued and reserve candidates.
// It is the only mutation allowed on a candidate once fetched.
func (s *State) UpdateRouting(routes map[string]RouteInfo) {
	for id, r := range routes {
		if i, ok := s.index[id]; ok {
			s.queue[i].DistanceKm = r.DistanceKm
			s.queue[i].EtaMinutes = r.EtaMinutes
		}
		if s.approved != nil && s.approved.HospitalID == id {
			s.approved.DistanceKm = r.DistanceKm
			s.approved.EtaMinutes = r.EtaMinutes
		}
	}
}

// Cancel ends the round on operator request. Outstanding attempts are
// cancelled without being rejected.
func (s *State) Cancel() []effects.Effect {
	if s.Phase == PhaseApproved || s.Phase == PhaseCancelled {
		return nil
	}
	calling := s.Calling()
	for _, id := range calling {
		s.status[id] = StatusPending
		delete(s.callRefs, id)
	}
	s.pendingDial = ""
	s.Phase = PhaseCancelled
	effs := []effects.Effect{effects.HaltEffect{Reason: "cancelled"}}
	if len(calling) > 0 {
		effs = append(effs, effects.CancelAttemptEffect{HospitalIDs: calling})
	}
	return effs
}
