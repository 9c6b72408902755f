package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownHospital = errors.New("unknown hospital")
	ErrCaseClosed      = errors.New("case is closed")
	ErrAlreadyApproved = errors.New("already approved")
	ErrAlreadyRejected = errors.New("already rejected")
	ErrNoCandidates    = errors.New("search returned no candidates")
)

// manualRefusal maps a refused operator override to its sentinel error.
func manualRefusal(ctx ManualContext, guard GuardResult) error {
	var sentinel error
	switch {
	case ctx.Phase == PhaseApproved:
		sentinel = ErrAlreadyApproved
	case ctx.Phase.Terminal():
		sentinel = ErrCaseClosed
	case !ctx.Known:
		sentinel = ErrUnknownHospital
	case ctx.Status == StatusRejected:
		sentinel = ErrAlreadyRejected
	default:
		sentinel = ErrAlreadyApproved
	}
	return fmt.Errorf("%w: %s", sentinel, guard.Reason)
}
