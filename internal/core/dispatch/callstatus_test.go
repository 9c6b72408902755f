package dispatch

import "testing"

func TestClassifyCallStatus(t *testing.T) {
	tests := []struct {
		name         string
		digit        string
		status       string
		wantDecision Decision
		wantReason   Reason
		wantOK       bool
	}{
		{"digit 1 accepts", "1", "in-progress", DecisionApproved, ReasonAccepted, true},
		{"digit 2 rejects", "2", "completed", DecisionRejected, ReasonDeclined, true},
		{"digit wins over terminal status", "1", "failed", DecisionApproved, ReasonAccepted, true},
		{"busy rejects", "", "busy", DecisionRejected, ReasonLineFailed, true},
		{"failed rejects", "", "failed", DecisionRejected, ReasonLineFailed, true},
		{"no-answer rejects", "", "no-answer", DecisionRejected, ReasonLineFailed, true},
		{"canceled rejects", "", "canceled", DecisionRejected, ReasonLineFailed, true},
		{"ringing is open", "", "ringing", "", "", false},
		{"in-progress is open", "", "in-progress", "", "", false},
		{"completed without digit is open", "", "completed", "", "", false},
		{"unknown digit is open", "9", "in-progress", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, reason, ok := ClassifyCallStatus(tt.digit, tt.status)
			if ok != tt.wantOK {
				t.Fatalf("ClassifyCallStatus() ok = %v, want %v", ok, tt.wantOK)
			}
			if decision != tt.wantDecision {
				t.Errorf("decision = %q, want %q", decision, tt.wantDecision)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}
