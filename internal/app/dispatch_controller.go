package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ctxutil"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/metrics"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// ErrControllerStopped is returned by commands sent after Run returned.
var ErrControllerStopped = errors.New("dispatch controller stopped")

// DispatchConfig configures the dispatch of one case.
type DispatchConfig struct {
	Case           dispatch.CaseInfo
	Options        dispatch.Options
	Policy         dispatch.TimeoutPolicy
	PollInterval   time.Duration
	DialRetry      RetryPolicy
	// ResyncInterval spaces retries of a handoff that degraded to a local session.
	ResyncInterval time.Duration
}

// DispatchDeps are the collaborators of a controller.
// Events, Routes, Handoff, Decisions and Metrics may be nil.
type DispatchDeps struct {
	Clock     clock.Clock
	Telephony secondary.Telephony
	Events    secondary.EventChannel
	Routes    secondary.RouteService
	Handoff   primary.HandoffService
	Decisions secondary.DecisionLog
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// inboxEvent is anything the controller loop consumes.
type inboxEvent interface{ isInboxEvent() }

type commandKind int

const (
	cmdApprove commandKind = iota
	cmdReject
	cmdRestart
	cmdCancel
)

type (
	command struct {
		kind       commandKind
		hospitalID string
		tiers      dispatch.Tiers
		actor      string
		reply      chan error
	}
	dialDue struct {
		hospitalID string
		generation uint64
	}
	pushReceived struct {
		event secondary.PushEvent
	}
	routesFetched struct {
		round  uint64
		routes map[string]dispatch.RouteInfo
		err    error
	}
	handoffDone struct {
		round uint64
		ref   dispatch.SessionRef
		err   error
	}
	resyncDue struct {
		round uint64
	}
	resyncDone struct {
		round uint64
		ref   dispatch.SessionRef
		err   error
	}
)

func (command) isInboxEvent()       {}
func (dialDue) isInboxEvent()       {}
func (pushReceived) isInboxEvent()  {}
func (routesFetched) isInboxEvent() {}
func (handoffDone) isInboxEvent()   {}
func (resyncDue) isInboxEvent()     {}
func (resyncDone) isInboxEvent()    {}

// DispatchControllerImpl implements the DispatchService interface.
//
// One goroutine (Run) owns the dispatch state and the attempt tracker. Poll
// results, push events, timers, dial results and operator commands are all
// posted into a single inbox and applied in arrival order.
type DispatchControllerImpl struct {
	cfg       DispatchConfig
	deps      DispatchDeps
	logger    *slog.Logger
	narration string
	tracker   *AttemptTracker

	inbox   chan inboxEvent
	updates chan dispatch.Snapshot
	done    chan struct{}

	mu     sync.RWMutex
	latest dispatch.Snapshot

	// background tracks handoff and resync calls; shutdown waits for them.
	background sync.WaitGroup

	// Owned by the Run goroutine.
	state    *dispatch.State
	round    uint64
	session  *dispatch.SessionRef
	sub      secondary.Subscription
	delay    *clock.Timer
	delayGen uint64
	resync   *clock.Timer
	closing  bool
}

// NewDispatchController creates a controller for one case. Call Run to start it.
func NewDispatchController(cfg DispatchConfig, deps DispatchDeps) *DispatchControllerImpl {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = 30 * time.Second
	}
	if cfg.Policy == (dispatch.TimeoutPolicy{}) {
		cfg.Policy = dispatch.DefaultTimeoutPolicy()
	}
	logger := logging.OrDiscard(deps.Logger).With("case_id", cfg.Case.CaseID)

	c := &DispatchControllerImpl{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		narration: dispatch.BuildNarration(cfg.Case),
		inbox:     make(chan inboxEvent, 64),
		updates:   make(chan dispatch.Snapshot, 1),
		done:      make(chan struct{}),
		latest:    dispatch.IdleSnapshot(cfg.Case.CaseID),
	}
	c.tracker = NewAttemptTracker(deps.Clock, deps.Telephony, cfg.Policy, cfg.DialRetry, c.post, logger)
	return c
}

// Run processes events until ctx is done. The push subscription is joined
// on entry and left once the case is approved or cancelled. On exit every
// attempt and timer is cancelled and in-flight handoffs are awaited.
func (c *DispatchControllerImpl) Run(ctx context.Context) error {
	defer close(c.done)

	c.join(ctx)

	ticker := c.deps.Clock.Ticker(c.cfg.PollInterval)
	defer ticker.Stop()
	defer c.shutdown()

	c.publish()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.tracker.Poll(ctx)
		case ev := <-c.inbox:
			c.handle(ctx, ev)
		}
	}
}

// join subscribes to push events for the case unless already joined.
func (c *DispatchControllerImpl) join(ctx context.Context) {
	if c.deps.Events == nil || c.sub != nil {
		return
	}
	sub, err := c.deps.Events.Join(ctx, c.cfg.Case.CaseID)
	if err != nil {
		c.logger.Warn("push channel unavailable, relying on polling", "error", err)
		return
	}
	c.sub = sub
	go c.forward(ctx, sub)
}

// leave closes the push subscription.
func (c *DispatchControllerImpl) leave() {
	if c.sub == nil {
		return
	}
	if err := c.sub.Close(); err != nil {
		c.logger.Debug("failed to leave push channel", "error", err)
	}
	c.sub = nil
}

func (c *DispatchControllerImpl) forward(ctx context.Context, sub secondary.Subscription) {
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			c.post(pushReceived{event: ev})
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

func (c *DispatchControllerImpl) post(ev inboxEvent) {
	select {
	case c.inbox <- ev:
	case <-c.done:
	}
}

func (c *DispatchControllerImpl) shutdown() {
	c.closing = true
	c.stopDelay()
	c.stopResync()
	c.tracker.CancelAll()
	c.leave()
	c.drainBackground()
	close(c.updates)
}

// drainBackground waits for in-flight handoff and resync calls, applying
// their results so the final snapshot carries the session.
func (c *DispatchControllerImpl) drainBackground() {
	idle := make(chan struct{})
	go func() {
		c.background.Wait()
		close(idle)
	}()
	for {
		select {
		case ev := <-c.inbox:
			c.settle(ev)
		case <-idle:
			for {
				select {
				case ev := <-c.inbox:
					c.settle(ev)
				default:
					return
				}
			}
		}
	}
}

// settle applies session results during shutdown; everything else is dropped.
func (c *DispatchControllerImpl) settle(ev inboxEvent) {
	switch e := ev.(type) {
	case handoffDone:
		c.onHandoff(e)
	case resyncDone:
		c.onResyncDone(e)
	default:
		return
	}
	c.publish()
}

// Approve is an operator override accepting a hospital.
func (c *DispatchControllerImpl) Approve(ctx context.Context, hospitalID string) error {
	return c.do(ctx, command{kind: cmdApprove, hospitalID: hospitalID})
}

// Reject is an operator override refusing a hospital.
func (c *DispatchControllerImpl) Reject(ctx context.Context, hospitalID string) error {
	return c.do(ctx, command{kind: cmdReject, hospitalID: hospitalID})
}

// RestartSearch replaces the candidate pool and starts a new round.
// An empty search leaves the case exhausted and returns ErrNoCandidates.
func (c *DispatchControllerImpl) RestartSearch(ctx context.Context, tiers dispatch.Tiers) error {
	return c.do(ctx, command{kind: cmdRestart, tiers: tiers})
}

// Cancel ends the current round without approving anyone.
func (c *DispatchControllerImpl) Cancel(ctx context.Context) error {
	return c.do(ctx, command{kind: cmdCancel})
}

func (c *DispatchControllerImpl) do(ctx context.Context, cmd command) error {
	cmd.actor = ctxutil.ActorFromContext(ctx)
	cmd.reply = make(chan error, 1)

	select {
	case c.inbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerStopped
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerStopped
	}
}

// Snapshot returns the latest read model.
func (c *DispatchControllerImpl) Snapshot() dispatch.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Updates delivers the latest snapshot after every processed event. The
// channel is closed when Run returns.
func (c *DispatchControllerImpl) Updates() <-chan dispatch.Snapshot {
	return c.updates
}

// TimerStats exposes the timeout timer hygiene counters.
func (c *DispatchControllerImpl) TimerStats() TimerStats { return c.tracker.Stats() }

// ActiveTimers returns the number of live timeout timers.
func (c *DispatchControllerImpl) ActiveTimers() int { return c.tracker.ActiveTimers() }

func (c *DispatchControllerImpl) handle(ctx context.Context, ev inboxEvent) {
	before := c.phase()

	var reply chan error
	var err error
	switch e := ev.(type) {
	case command:
		reply = e.reply
		err = c.handleCommand(ctx, e)
	case timeoutFired:
		c.onTimeout(ctx, e)
	case dialDue:
		c.onDialDue(ctx, e)
	case dialDone:
		c.onDialDone(ctx, e)
	case pollDone:
		c.onPollDone(ctx, e)
	case pushReceived:
		c.onPush(ctx, e.event)
	case routesFetched:
		c.onRoutes(e)
	case handoffDone:
		c.onHandoff(e)
	case resyncDue:
		c.onResyncDue(ctx, e)
	case resyncDone:
		c.onResyncDone(e)
	}

	if after := c.phase(); before != after {
		switch after {
		case dispatch.PhaseExhausted:
			c.deps.Metrics.Exhausted()
		case dispatch.PhaseApproved, dispatch.PhaseCancelled:
			c.leave()
		}
	}
	c.publish()
	if reply != nil {
		reply <- err
	}
}

func (c *DispatchControllerImpl) phase() dispatch.Phase {
	if c.state == nil {
		return dispatch.PhaseIdle
	}
	return c.state.Phase
}

func (c *DispatchControllerImpl) handleCommand(ctx context.Context, cmd command) error {
	if cmd.actor != "" {
		ctx = ctxutil.WithActorID(ctx, cmd.actor)
	}

	switch cmd.kind {
	case cmdApprove, cmdReject:
		if c.state == nil {
			return fmt.Errorf("%w: no dispatch round in progress", dispatch.ErrCaseClosed)
		}
		decision := dispatch.DecisionApproved
		if cmd.kind == cmdReject {
			decision = dispatch.DecisionRejected
		}
		return c.resolve(ctx, dispatch.Resolution{
			HospitalID: cmd.hospitalID,
			Decision:   decision,
			Source:     dispatch.SourceManual,
			Reason:     dispatch.ReasonManual,
		})

	case cmdRestart:
		return c.restart(ctx, cmd.tiers)

	case cmdCancel:
		if c.state == nil {
			return fmt.Errorf("%w: no dispatch round in progress", dispatch.ErrCaseClosed)
		}
		if c.state.Phase == dispatch.PhaseApproved {
			return fmt.Errorf("%w: case %s cannot be cancelled", dispatch.ErrAlreadyApproved, c.cfg.Case.CaseID)
		}
		c.execute(ctx, c.state.Cancel())
		c.logger.Info("dispatch cancelled by operator")
		return nil
	}
	return fmt.Errorf("unknown command %d", cmd.kind)
}

func (c *DispatchControllerImpl) restart(ctx context.Context, tiers dispatch.Tiers) error {
	rc := dispatch.RestartContext{CaseID: c.cfg.Case.CaseID, Phase: c.phase()}
	if c.state != nil {
		if a, ok := c.state.Approved(); ok {
			rc.ApprovedHospitalID = a.HospitalID
		}
	}
	if guard := dispatch.CanRestartSearch(rc); !guard.Allowed {
		return fmt.Errorf("%w: %s", dispatch.ErrAlreadyApproved, guard.Reason)
	}

	if c.state != nil {
		c.execute(ctx, c.state.Cancel())
	}
	c.stopDelay()
	c.stopResync()
	c.tracker.CancelAll()
	c.join(ctx)

	tiers = dispatch.Normalize(tiers)
	c.round++
	c.session = nil
	c.state = dispatch.NewState(c.cfg.Case.CaseID, tiers, c.cfg.Options)
	c.logger.Info("dispatch round started",
		"round", c.round,
		"primary", len(tiers.Primary),
		"backup", len(tiers.Backup),
		"neighbor", len(tiers.Neighbor),
		"auto_dial", c.cfg.Options.AutoDial,
	)

	if tiers.Empty() {
		return dispatch.ErrNoCandidates
	}
	c.execute(ctx, c.state.Advance())
	return nil
}

// resolve offers a resolution to the state and executes its effects.
func (c *DispatchControllerImpl) resolve(ctx context.Context, r dispatch.Resolution) error {
	out := c.state.Resolve(r)
	if !out.Applied {
		c.logger.Debug("resolution discarded",
			"hospital_id", r.HospitalID,
			"decision", r.Decision,
			"source", r.Source,
			"reason", out.Discarded,
		)
		c.deps.Metrics.Discard(string(r.Source))
		return out.Err
	}

	c.deps.Metrics.Resolved(string(r.Source), string(r.Decision))
	c.logger.Info("resolution applied",
		"hospital_id", r.HospitalID,
		"decision", r.Decision,
		"source", r.Source,
		"reason", c.state.Reason(r.HospitalID),
	)
	c.execute(ctx, out.Effects)
	return nil
}

func (c *DispatchControllerImpl) onTimeout(ctx context.Context, e timeoutFired) {
	if c.state == nil || !c.tracker.Expire(e.hospitalID, e.generation) {
		c.logger.Debug("stale timeout ignored", "hospital_id", e.hospitalID)
		return
	}
	_ = c.resolve(ctx, dispatch.Resolution{
		HospitalID: e.hospitalID,
		Decision:   dispatch.DecisionRejected,
		Source:     dispatch.SourceTimeout,
		Reason:     dispatch.ReasonTimeout,
	})
}

func (c *DispatchControllerImpl) onDialDue(ctx context.Context, e dialDue) {
	if c.state == nil || e.generation != c.delayGen {
		return
	}
	c.delay = nil
	c.execute(ctx, c.state.BeginDial(e.hospitalID))
}

func (c *DispatchControllerImpl) onDialDone(ctx context.Context, e dialDone) {
	if c.state == nil || !c.tracker.IsCurrent(e.hospitalID, e.generation) {
		return
	}
	if e.err != nil {
		c.deps.Metrics.DialFailed()
		c.logger.Warn("acceptance call could not be placed", "hospital_id", e.hospitalID, "error", e.err)
		_ = c.resolve(ctx, dispatch.Resolution{
			HospitalID: e.hospitalID,
			Decision:   dispatch.DecisionRejected,
			Source:     dispatch.SourceDial,
			Reason:     dispatch.ReasonDispatchFailed,
		})
		return
	}
	if c.tracker.Attach(e.hospitalID, e.generation, e.callRef) {
		c.state.AttachCall(e.hospitalID, e.callRef)
		c.logger.Debug("acceptance call placed", "hospital_id", e.hospitalID, "call_ref", e.callRef)
	}
}

func (c *DispatchControllerImpl) onPollDone(ctx context.Context, e pollDone) {
	if c.state == nil || !c.tracker.PollDone(e.hospitalID, e.generation) {
		return
	}
	if e.err != nil {
		c.logger.Debug("call status query failed", "hospital_id", e.hospitalID, "error", e.err)
		return
	}
	decision, reason, ok := dispatch.ClassifyCallStatus(e.status.Digit, e.status.Status)
	if !ok {
		return
	}
	_ = c.resolve(ctx, dispatch.Resolution{
		HospitalID: e.hospitalID,
		Decision:   decision,
		Source:     dispatch.SourcePoll,
		Reason:     reason,
		CallRef:    e.callRef,
	})
}

func (c *DispatchControllerImpl) onPush(ctx context.Context, ev secondary.PushEvent) {
	if ev.CaseID != "" && ev.CaseID != c.cfg.Case.CaseID {
		return
	}
	r := dispatch.Resolution{HospitalID: ev.HospitalID, Source: dispatch.SourcePush, CallRef: ev.CallRef}
	switch ev.Event {
	case secondary.EventHospitalApproved:
		r.Decision, r.Reason = dispatch.DecisionApproved, dispatch.ReasonAccepted
	case secondary.EventHospitalRejected:
		r.Decision, r.Reason = dispatch.DecisionRejected, dispatch.ReasonDeclined
	default:
		c.logger.Debug("unknown push event ignored", "event", ev.Event)
		return
	}
	if c.state == nil {
		c.logger.Debug("push event before any round ignored", "hospital_id", ev.HospitalID)
		return
	}
	_ = c.resolve(ctx, r)
}

func (c *DispatchControllerImpl) onRoutes(e routesFetched) {
	if c.state == nil || e.round != c.round {
		return
	}
	if e.err != nil {
		c.logger.Warn("route hydration failed", "error", e.err)
		return
	}
	c.state.UpdateRouting(e.routes)
}

func (c *DispatchControllerImpl) onHandoff(e handoffDone) {
	if e.round != c.round {
		return
	}
	if e.err != nil {
		c.logger.Error("handoff failed", "error", e.err)
		return
	}
	ref := e.ref
	c.session = &ref
	c.deps.Metrics.HandedOff(ref.Local)
	if ref.Local {
		c.logger.Warn("handoff degraded to local session", "hospital_id", ref.HospitalID, "session_id", ref.SessionID)
		c.scheduleResync()
		return
	}
	c.logger.Info("handoff complete", "hospital_id", ref.HospitalID, "session_id", ref.SessionID)
}

// scheduleResync arms the retry of a local session after ResyncInterval.
func (c *DispatchControllerImpl) scheduleResync() {
	if c.closing || c.deps.Handoff == nil {
		return
	}
	c.stopResync()
	round := c.round
	c.resync = c.deps.Clock.AfterFunc(c.cfg.ResyncInterval, func() {
		c.post(resyncDue{round: round})
	})
}

func (c *DispatchControllerImpl) stopResync() {
	if c.resync != nil {
		c.resync.Stop()
		c.resync = nil
	}
}

func (c *DispatchControllerImpl) onResyncDue(ctx context.Context, e resyncDue) {
	c.resync = nil
	if c.closing || e.round != c.round || c.session == nil || !c.session.Local {
		return
	}
	caseID := c.cfg.Case.CaseID
	rctx := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ref, err := c.deps.Handoff.Resync(rctx, caseID)
		c.post(resyncDone{round: e.round, ref: ref, err: err})
	}()
}

func (c *DispatchControllerImpl) onResyncDone(e resyncDone) {
	if e.round != c.round {
		return
	}
	if e.err != nil || e.ref.Local {
		c.logger.Debug("local session still unsynced", "error", e.err)
		c.scheduleResync()
		return
	}
	ref := e.ref
	c.session = &ref
	c.logger.Info("local session synced", "hospital_id", ref.HospitalID, "session_id", ref.SessionID)
}

func (c *DispatchControllerImpl) publish() {
	var snap dispatch.Snapshot
	if c.state == nil {
		snap = dispatch.IdleSnapshot(c.cfg.Case.CaseID)
	} else {
		snap = c.state.Snapshot()
	}
	if c.session != nil {
		s := *c.session
		snap.Session = &s
	}

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()

	// Keep only the newest snapshot buffered.
	select {
	case c.updates <- snap:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- snap:
		default:
		}
	}
}

// Ensure DispatchControllerImpl implements the interface
var _ primary.DispatchService = (*DispatchControllerImpl)(nil)
