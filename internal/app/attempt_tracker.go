package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/ports/secondary"
)

// RetryPolicy bounds retries of a transient collaborator failure.
type RetryPolicy struct {
	Attempts int           // Total tries, including the first
	Interval time.Duration // Constant pause between tries
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Interval), uint64(attempts-1)),
		ctx,
	)
}

// CallAttempt is one outstanding acceptance call. It exists only while the
// hospital is calling.
type CallAttempt struct {
	HospitalID string
	CallRef    string
	StartedAt  time.Time
	Timeout    time.Duration

	generation uint64
	timer      *clock.Timer
	cancelDial context.CancelFunc
	fired      bool
	polling    bool
}

// TimerStats counts timeout timer hygiene. Armed always equals
// Stopped + Fired + the number of live timers.
type TimerStats struct {
	Armed   int
	Stopped int
	Fired   int
}

// Events produced by attempt goroutines and timers. They only carry data into
// the controller inbox; the tracker never resolves anything itself.
type (
	timeoutFired struct {
		hospitalID string
		generation uint64
	}
	dialDone struct {
		hospitalID string
		generation uint64
		callRef    string
		err        error
	}
	pollDone struct {
		hospitalID string
		generation uint64
		callRef    string
		status     secondary.CallStatus
		err        error
	}
)

func (timeoutFired) isInboxEvent() {}
func (dialDone) isInboxEvent()     {}
func (pollDone) isInboxEvent()     {}

// AttemptTracker owns the outbound attempts of one case: one attempt and one
// timeout timer per hospital at a time.
type AttemptTracker struct {
	clock     clock.Clock
	telephony secondary.Telephony
	policy    dispatch.TimeoutPolicy
	retry     RetryPolicy
	post      func(inboxEvent)
	logger    *slog.Logger

	mu       sync.Mutex
	attempts map[string]*CallAttempt
	nextGen  uint64
	stats    TimerStats
}

// NewAttemptTracker creates a tracker that reports into post.
func NewAttemptTracker(clk clock.Clock, telephony secondary.Telephony, policy dispatch.TimeoutPolicy, retry RetryPolicy, post func(inboxEvent), logger *slog.Logger) *AttemptTracker {
	return &AttemptTracker{
		clock:     clk,
		telephony: telephony,
		policy:    policy,
		retry:     retry,
		post:      post,
		logger:    logging.OrDiscard(logger),
		attempts:  make(map[string]*CallAttempt),
	}
}

// Start places an acceptance call and arms its timeout. A previous attempt for
// the same hospital is cancelled first.
func (t *AttemptTracker) Start(ctx context.Context, candidate dispatch.Candidate, narration string) CallAttempt {
	t.Cancel(candidate.HospitalID)

	t.mu.Lock()
	t.nextGen++
	gen := t.nextGen
	id := candidate.HospitalID
	dialCtx, cancel := context.WithCancel(ctx)
	a := &CallAttempt{
		HospitalID: id,
		StartedAt:  t.clock.Now(),
		Timeout:    dispatch.ResponseTimeout(narration, t.policy),
		generation: gen,
		cancelDial: cancel,
	}
	a.timer = t.clock.AfterFunc(a.Timeout, func() {
		t.post(timeoutFired{hospitalID: id, generation: gen})
	})
	t.stats.Armed++
	t.attempts[id] = a
	snapshot := *a
	t.mu.Unlock()

	go t.dial(dialCtx, candidate, narration, gen)
	return snapshot
}

func (t *AttemptTracker) dial(ctx context.Context, candidate dispatch.Candidate, narration string, gen uint64) {
	var callRef string
	op := func() error {
		ref, err := t.telephony.PlaceAcceptanceCall(ctx, candidate, narration)
		if err != nil {
			t.logger.Debug("acceptance call failed", "hospital_id", candidate.HospitalID, "error", err)
			return err
		}
		callRef = ref
		return nil
	}
	err := backoff.Retry(op, t.retry.backOff(ctx))
	t.post(dialDone{hospitalID: candidate.HospitalID, generation: gen, callRef: callRef, err: err})
}

// Attach records the call reference of the current attempt. It returns false
// for a superseded or cancelled attempt.
func (t *AttemptTracker) Attach(hospitalID string, gen uint64, callRef string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.current(hospitalID, gen)
	if a == nil {
		return false
	}
	a.CallRef = callRef
	return true
}

// IsCurrent reports whether gen is the live attempt of the hospital.
func (t *AttemptTracker) IsCurrent(hospitalID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current(hospitalID, gen) != nil
}

// Expire accepts a timer firing for the live attempt. A firing from a
// superseded attempt, or a second firing, returns false.
func (t *AttemptTracker) Expire(hospitalID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.current(hospitalID, gen)
	if a == nil || a.fired {
		return false
	}
	a.fired = true
	t.stats.Fired++
	return true
}

// Cancel destroys the attempt of a hospital: its timer is stopped (unless it
// already fired) and an in-flight dial is abandoned.
func (t *AttemptTracker) Cancel(hospitalID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked(hospitalID)
}

// CancelAll destroys every attempt.
func (t *AttemptTracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.attempts {
		t.cancelLocked(id)
	}
}

func (t *AttemptTracker) cancelLocked(hospitalID string) bool {
	a, ok := t.attempts[hospitalID]
	if !ok {
		return false
	}
	if !a.fired {
		a.timer.Stop()
		t.stats.Stopped++
	}
	a.cancelDial()
	delete(t.attempts, hospitalID)
	return true
}

func (t *AttemptTracker) current(hospitalID string, gen uint64) *CallAttempt {
	a, ok := t.attempts[hospitalID]
	if !ok || a.generation != gen {
		return nil
	}
	return a
}

// Poll queries the status of every attempt with a call reference and no query
// already in flight.
func (t *AttemptTracker) Poll(ctx context.Context) {
	t.mu.Lock()
	var due []CallAttempt
	for _, a := range t.attempts {
		if a.CallRef == "" || a.polling || a.fired {
			continue
		}
		a.polling = true
		due = append(due, *a)
	}
	t.mu.Unlock()

	for _, a := range due {
		go func(a CallAttempt) {
			st, err := t.telephony.GetCallStatus(ctx, a.CallRef)
			t.post(pollDone{hospitalID: a.HospitalID, generation: a.generation, callRef: a.CallRef, status: st, err: err})
		}(a)
	}
}

// PollDone clears the in-flight flag and reports whether the result belongs
// to the live attempt.
func (t *AttemptTracker) PollDone(hospitalID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.current(hospitalID, gen)
	if a == nil {
		return false
	}
	a.polling = false
	return !a.fired
}

// Get returns a copy of the live attempt of a hospital.
func (t *AttemptTracker) Get(hospitalID string) (CallAttempt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.attempts[hospitalID]
	if !ok {
		return CallAttempt{}, false
	}
	return *a, true
}

// ActiveTimers returns the number of armed timers that have neither fired nor been stopped.
func (t *AttemptTracker) ActiveTimers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.attempts {
		if !a.fired {
			n++
		}
	}
	return n
}

// Stats returns the timer hygiene counters.
func (t *AttemptTracker) Stats() TimerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
