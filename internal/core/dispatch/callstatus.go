package dispatch

// Digits collected by the ARS.
const (
	DigitAccept = "1"
	DigitReject = "2"
)

var terminalCallStatuses = map[string]bool{
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

// ClassifyCallStatus maps a polled call status to a decision.
// A digit always wins. Terminal line statuses reject. Everything else
// (ringing, in-progress, completed without a digit) is still open.
func ClassifyCallStatus(digit, status string) (Decision, Reason, bool) {
	switch digit {
	case DigitAccept:
		return DecisionApproved, ReasonAccepted, true
	case DigitReject:
		return DecisionRejected, ReasonDeclined, true
	}
	if terminalCallStatuses[status] {
		return DecisionRejected, ReasonLineFailed, true
	}
	return "", "", false
}
