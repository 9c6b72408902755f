package dispatch

import "github.com/example/safebridge/internal/core/effects"

// Absorb appends the candidates whose hpid is not queued yet, tagged with tier,
// and returns only the novel ones. The queue is frozen once a hospital is approved.
func (s *State) Absorb(cands []Candidate, tier Tier) []Candidate {
	if s.approved != nil {
		return nil
	}
	var novel []Candidate
	for _, c := range cands {
		if c.HospitalID == "" {
			continue
		}
		if _, ok := s.index[c.HospitalID]; ok {
			continue
		}
		c.Tier = tier
		s.index[c.HospitalID] = len(s.queue)
		s.queue = append(s.queue, c)
		s.status[c.HospitalID] = StatusPending
		novel = append(novel, c)
	}
	if len(novel) > 0 && s.exhausted {
		s.exhausted = false
		if s.Phase == PhaseExhausted {
			s.Phase = PhaseDispatching
		}
	}
	return novel
}

// IsExhausted reports whether every tier has been consumed without an eligible candidate.
func (s *State) IsExhausted() bool { return s.exhausted }

// NextEligible returns the first queued candidate that is neither rejected nor
// approved/calling. When the queue has none and no call is in flight, it pulls
// from the reserve tiers: one backup candidate, else the neighbor batch. The
// pull happens once per exhaustion event and yields one HydrateRoutesEffect;
// when nothing is left the state becomes exhausted and further calls are no-ops.
func (s *State) NextEligible() (Candidate, []effects.Effect, bool) {
	if s.exhausted || s.approved != nil {
		return Candidate{}, nil, false
	}
	if c, ok := s.firstEligible(); ok {
		return c, nil, true
	}
	if s.hasCalling() {
		return Candidate{}, nil, false
	}

	novel := s.replenish()
	if len(novel) == 0 {
		s.exhausted = true
		return Candidate{}, nil, false
	}
	ids := make([]string, len(novel))
	for i, c := range novel {
		ids[i] = c.HospitalID
	}
	c, _ := s.firstEligible()
	return c, []effects.Effect{effects.HydrateRoutesEffect{CaseID: s.CaseID, HospitalIDs: ids}}, true
}

func (s *State) firstEligible() (Candidate, bool) {
	for _, c := range s.queue {
		if s.status[c.HospitalID] == StatusPending && !s.IsRejected(c.HospitalID) {
			return c, true
		}
	}
	return Candidate{}, false
}

func (s *State) replenish() []Candidate {
	for _, c := range s.backup {
		if s.novel(c) {
			return s.Absorb([]Candidate{c}, TierBackup)
		}
	}
	var batch []Candidate
	for _, c := range s.neighbor {
		if s.novel(c) {
			batch = append(batch, c)
		}
	}
	return s.Absorb(batch, TierNeighbor)
}

func (s *State) novel(c Candidate) bool {
	if c.HospitalID == "" || s.IsRejected(c.HospitalID) {
		return false
	}
	_, queued := s.index[c.HospitalID]
	return !queued
}

// ReserveRemaining reports how many reserve candidates could still be pulled.
func (s *State) ReserveRemaining() int {
	seen := make(map[string]bool)
	n := 0
	for _, c := range append(append([]Candidate{}, s.backup...), s.neighbor...) {
		if s.novel(c) && !seen[c.HospitalID] {
			seen[c.HospitalID] = true
			n++
		}
	}
	return n
}
