package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// PacedTelephony spaces outbound dials across every case sharing it.
// Status queries are not paced.
type PacedTelephony struct {
	next    secondary.Telephony
	limiter *rate.Limiter
}

// NewPacedTelephony allows one dial per interval with the given burst.
// A non-positive interval disables pacing.
func NewPacedTelephony(next secondary.Telephony, interval time.Duration, burst int) *PacedTelephony {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &PacedTelephony{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (p *PacedTelephony) PlaceAcceptanceCall(ctx context.Context, candidate dispatch.Candidate, narration string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("failed to pace dial to %s: %w", candidate.HospitalID, err)
	}
	return p.next.PlaceAcceptanceCall(ctx, candidate, narration)
}

func (p *PacedTelephony) GetCallStatus(ctx context.Context, callRef string) (secondary.CallStatus, error) {
	return p.next.GetCallStatus(ctx, callRef)
}

var _ secondary.Telephony = (*PacedTelephony)(nil)
