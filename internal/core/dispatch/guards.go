package dispatch

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ManualContext provides the context for an operator override guard.
type ManualContext struct {
	HospitalID string
	Known      bool // Hospital is in the candidate queue
	Phase      Phase
	Status     ApprovalStatus
	Decision   Decision
}

// CanApplyManual evaluates whether an operator approve/reject may be applied.
// Rules:
//   - the case must not be approved, exhausted or cancelled
//   - the hospital must be a queued candidate
//   - a rejected hospital stays rejected (the rejected set never shrinks)
func CanApplyManual(ctx ManualContext) GuardResult {
	if ctx.Phase.Terminal() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("case is %s - no further %s accepted for %s", ctx.Phase, ctx.Decision, ctx.HospitalID),
		}
	}
	if !ctx.Known {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("hospital %s is not a candidate for this case", ctx.HospitalID),
		}
	}
	if ctx.Status == StatusRejected {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("hospital %s was already rejected", ctx.HospitalID),
		}
	}
	if ctx.Status == StatusApproved {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("hospital %s was already approved", ctx.HospitalID),
		}
	}
	return GuardResult{Allowed: true}
}

// RestartContext provides the context for a fresh search guard.
type RestartContext struct {
	CaseID             string
	Phase              Phase
	ApprovedHospitalID string
}

// CanRestartSearch evaluates whether the candidate pool may be re-rolled.
// Rule: an approval is write-once per case; approved cases cannot be re-searched.
func CanRestartSearch(ctx RestartContext) GuardResult {
	if ctx.Phase == PhaseApproved {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("case %s is already approved by %s - cannot restart search", ctx.CaseID, ctx.ApprovedHospitalID),
		}
	}
	return GuardResult{Allowed: true}
}
