package app

import (
	"context"
	"fmt"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/core/effects"
	"github.com/example/safebridge/internal/ctxutil"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// execute interprets the effects produced by the dispatch core.
// This is the imperative shell of the controller: the only place dispatch I/O starts.
func (c *DispatchControllerImpl) execute(ctx context.Context, effs []effects.Effect) {
	for _, eff := range effs {
		if err := c.executeOne(ctx, eff); err != nil {
			c.logger.Error("failed to execute effect", "effect", eff.EffectType(), "error", err)
		}
	}
}

func (c *DispatchControllerImpl) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.DialEffect:
		return c.executeDial(ctx, typed)
	case effects.CancelAttemptEffect:
		for _, id := range typed.HospitalIDs {
			c.tracker.Cancel(id)
		}
		return nil
	case effects.HaltEffect:
		c.stopDelay()
		return nil
	case effects.HydrateRoutesEffect:
		return c.executeHydrate(ctx, typed)
	case effects.RecordDecisionEffect:
		return c.executeRecord(ctx, typed)
	case effects.HandoffEffect:
		return c.executeHandoff(ctx, typed)
	case effects.CompositeEffect:
		c.execute(ctx, typed.Effects)
		return nil
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		c.executeLog(typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (c *DispatchControllerImpl) executeDial(ctx context.Context, eff effects.DialEffect) error {
	if eff.Delay > 0 {
		c.stopDelay()
		gen := c.delayGen
		id := eff.HospitalID
		c.delay = c.deps.Clock.AfterFunc(eff.Delay, func() {
			c.post(dialDue{hospitalID: id, generation: gen})
		})
		c.logger.Debug("dial scheduled", "hospital_id", id, "delay", eff.Delay)
		return nil
	}

	candidate, ok := c.state.Candidate(eff.HospitalID)
	if !ok {
		return fmt.Errorf("hospital %s is not queued", eff.HospitalID)
	}
	attempt := c.tracker.Start(ctx, candidate, c.narration)
	c.deps.Metrics.Dial()
	c.logger.Info("dialing hospital",
		"hospital_id", candidate.HospitalID,
		"name", candidate.Name,
		"tier", candidate.Tier,
		"timeout", attempt.Timeout,
	)
	return nil
}

// stopDelay cancels a scheduled dial. Bumping the generation makes a timer
// that already fired harmless.
func (c *DispatchControllerImpl) stopDelay() {
	if c.delay != nil {
		c.delay.Stop()
		c.delay = nil
	}
	c.delayGen++
}

func (c *DispatchControllerImpl) executeHydrate(ctx context.Context, eff effects.HydrateRoutesEffect) error {
	if c.deps.Routes == nil {
		return nil
	}
	var cands []dispatch.Candidate
	for _, id := range eff.HospitalIDs {
		if cand, ok := c.state.Candidate(id); ok {
			cands = append(cands, cand)
		}
	}
	if len(cands) == 0 {
		return nil
	}
	origin := secondary.Location{Lat: c.cfg.Case.Lat, Lon: c.cfg.Case.Lon}
	round := c.round
	go func() {
		routes, err := c.deps.Routes.Routes(ctx, origin, cands)
		c.post(routesFetched{round: round, routes: routes, err: err})
	}()
	return nil
}

func (c *DispatchControllerImpl) executeRecord(ctx context.Context, eff effects.RecordDecisionEffect) error {
	if c.deps.Decisions == nil {
		return nil
	}
	id, err := c.deps.Decisions.GetNextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate decision ID: %w", err)
	}
	record := &secondary.DecisionRecord{
		ID:         id,
		CaseID:     eff.CaseID,
		HospitalID: eff.HospitalID,
		Decision:   eff.Decision,
		Source:     eff.Source,
		Reason:     eff.Reason,
		ActorID:    ctxutil.ActorFromContext(ctx),
	}
	if err := c.deps.Decisions.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

func (c *DispatchControllerImpl) executeHandoff(ctx context.Context, eff effects.HandoffEffect) error {
	if c.deps.Handoff == nil {
		return nil
	}
	hospital, ok := c.state.Approved()
	if !ok {
		return fmt.Errorf("handoff requested for %s without an approval", eff.HospitalID)
	}
	req := primary.HandoffRequest{Case: c.cfg.Case, Hospital: hospital, CallRef: eff.CallRef}
	round := c.round
	// The handoff outlives an operator quitting; shutdown waits for it.
	hctx := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ref, err := c.deps.Handoff.Handoff(hctx, req)
		c.post(handoffDone{round: round, ref: ref, err: err})
	}()
	return nil
}

func (c *DispatchControllerImpl) executeLog(eff effects.LogEffect) {
	args := make([]any, 0, len(eff.Fields)*2)
	for k, v := range eff.Fields {
		args = append(args, k, v)
	}
	switch eff.Level {
	case "debug":
		c.logger.Debug(eff.Message, args...)
	case "warn":
		c.logger.Warn(eff.Message, args...)
	case "error":
		c.logger.Error(eff.Message, args...)
	default:
		c.logger.Info(eff.Message, args...)
	}
}
