package dispatch

// View is what the operator is shown; internal races and retries never surface.
type View string

const (
	ViewSearching        View = "searching"
	ViewAwaitingHospital View = "awaiting_hospital"
	ViewAwaitingManual   View = "awaiting_manual"
	ViewApproved         View = "approved"
	ViewExhausted        View = "exhausted"
	ViewCancelled        View = "cancelled"
)

// CandidateState is one row of the snapshot candidate list.
type CandidateState struct {
	Candidate
	Status ApprovalStatus
	Reason Reason
}

// Snapshot is the immutable read model exposed to the presentation layer.
type Snapshot struct {
	CaseID           string
	Status           Phase
	View             View
	CurrentCandidate *Candidate
	RejectedCount    int
	ApprovedHospital *Candidate
	Candidates       []CandidateState
	Session          *SessionRef
}

// IdleSnapshot is the read model before the first search completes.
func IdleSnapshot(caseID string) Snapshot {
	return Snapshot{CaseID: caseID, Status: PhaseIdle, View: ViewSearching}
}

// Snapshot copies the state into a read model.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		CaseID:        s.CaseID,
		Status:        s.Phase,
		RejectedCount: len(s.rejected),
		Candidates:    make([]CandidateState, 0, len(s.queue)),
	}
	for _, c := range s.queue {
		snap.Candidates = append(snap.Candidates, CandidateState{
			Candidate: c,
			Status:    s.status[c.HospitalID],
			Reason:    s.reasons[c.HospitalID],
		})
	}
	if s.approved != nil {
		a := *s.approved
		snap.ApprovedHospital = &a
	}

	current := ""
	if calling := s.Calling(); len(calling) > 0 {
		current = calling[0]
	} else if s.pendingDial != "" {
		current = s.pendingDial
	}
	if current != "" {
		c := s.queue[s.index[current]]
		snap.CurrentCandidate = &c
	}

	snap.View = s.view()
	return snap
}

func (s *State) view() View {
	switch s.Phase {
	case PhaseIdle:
		return ViewSearching
	case PhaseApproved:
		return ViewApproved
	case PhaseExhausted:
		return ViewExhausted
	case PhaseCancelled:
		return ViewCancelled
	}
	if s.hasCalling() {
		return ViewAwaitingHospital
	}
	return ViewAwaitingManual
}
