package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/model"
)

// Commit validates cfg and locks it in. It is only legal in Setup before the
// run has ticked. A duration of zero means endless; otherwise it must lie in
// 1..max. When cfg carries no seed one is drawn from the seed source and
// reported in the returned status.
func (c *Controller) Commit(ctx context.Context, cfg model.RunConfig) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "commit")
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.RunSetup || c.populated {
		return c.endOpLocked(ctx, span, "commit", c.reject("commit",
			fmt.Errorf("%w: configuration is locked until reset", ErrInvalidOperation)))
	}
	if cfg.DurationTicks < 0 || cfg.DurationTicks > c.maxDuration {
		return c.endOpLocked(ctx, span, "commit", c.reject("commit",
			fmt.Errorf("%w: duration %d outside 1..%d (0 = endless)", ErrInvalidConfig, cfg.DurationTicks, c.maxDuration)))
	}

	generated := !cfg.HasSeed
	if generated {
		cfg.Seed = c.seedSource()
		cfg.HasSeed = true
	}
	c.cfg = cfg
	c.configured = true

	c.log.Info(ctx, "run configured", c.fieldsLocked(
		logging.Int("duration_ticks", cfg.DurationTicks),
		logging.Int64("seed", cfg.Seed),
		logging.Bool("seed_generated", generated),
	)...)
	c.notifyLocked()
	return c.endOpLocked(ctx, span, "commit", nil)
}

// Start activates the automatic tick loop from a configured Setup or from
// Paused. Starting an already running run is a no-op. If the duration has
// already been reached the run completes instead of running.
func (c *Controller) Start(ctx context.Context) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "start")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endOpLocked(ctx, span, "start", c.startLocked(ctx))
}

func (c *Controller) startLocked(ctx context.Context) error {
	switch c.state {
	case model.RunEnded:
		return c.reject("start", ErrRunEnded)
	case model.RunRunning:
		return nil
	case model.RunSetup:
		if !c.configured {
			return c.reject("start", ErrNotConfigured)
		}
	}

	c.populateLocked()
	if c.reachedDurationLocked() {
		c.finishLocked(ctx, model.OutcomeCompleted)
		return nil
	}

	c.setStateLocked(model.RunRunning)
	c.startLoopLocked()
	c.log.Info(ctx, "run started", c.fieldsLocked(
		logging.Duration("tick_interval", c.clock.Interval()),
		logging.String("mode", c.clock.Mode().String()),
	)...)
	c.notifyLocked()
	return nil
}

// Pause stops the automatic loop. It is a no-op unless the run is Running.
// No tick fires after Pause returns.
func (c *Controller) Pause(ctx context.Context) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "pause")
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == model.RunRunning {
		c.stopLoopLocked()
		c.setStateLocked(model.RunPaused)
		c.log.Info(ctx, "run paused", c.fieldsLocked()...)
		c.notifyLocked()
	}
	return c.endOpLocked(ctx, span, "pause", nil)
}

// Step advances exactly one tick without changing the run state. It is legal
// from a configured Setup, Running and Paused. When the duration has already
// been reached the run completes instead.
func (c *Controller) Step(ctx context.Context) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "step")
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == model.RunEnded:
		return c.endOpLocked(ctx, span, "step", c.reject("step", ErrRunEnded))
	case c.state == model.RunSetup && !c.configured:
		return c.endOpLocked(ctx, span, "step", c.reject("step", ErrNotConfigured))
	}

	c.populateLocked()
	if c.reachedDurationLocked() {
		c.finishLocked(ctx, model.OutcomeCompleted)
		return c.endOpLocked(ctx, span, "step", nil)
	}
	c.advanceLocked(ctx)
	return c.endOpLocked(ctx, span, "step", nil)
}

// End terminates the run by request. Reset is required before another run.
func (c *Controller) End(ctx context.Context) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "end")
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == model.RunEnded {
		return c.endOpLocked(ctx, span, "end", c.reject("end", ErrRunEnded))
	}
	c.finishLocked(ctx, model.OutcomeEndedByRequest)
	return c.endOpLocked(ctx, span, "end", nil)
}

// Reset returns to Setup from any state: the loop is stopped, the tick
// counter, fleet, pending events and RNG are discarded and the
// configuration is unlocked.
func (c *Controller) Reset(ctx context.Context) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "reset")
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked(ctx)
	return c.endOpLocked(ctx, span, "reset", nil)
}

// Restart runs again with the committed duration and seed. Without a
// committed configuration it behaves like Reset and reports ErrNotConfigured.
func (c *Controller) Restart(ctx context.Context) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "restart")
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.configured {
		c.resetLocked(ctx)
		return c.endOpLocked(ctx, span, "restart", c.reject("restart", ErrNotConfigured))
	}

	c.stopLoopLocked()
	c.clearRunLocked()
	c.setStateLocked(model.RunSetup)
	c.log.Info(ctx, "run restarted with committed settings", c.fieldsLocked(
		logging.Int64("seed", c.cfg.Seed),
		logging.Int("duration_ticks", c.cfg.DurationTicks),
	)...)
	return c.endOpLocked(ctx, span, "restart", c.startLocked(ctx))
}

// SetTickInterval changes the automatic tick period. Non-positive values are
// rejected; values under the floor are clamped. A running loop picks the new
// period up after the wait in progress.
func (c *Controller) SetTickInterval(ctx context.Context, d time.Duration) (model.RunStatus, error) {
	ctx, span := c.startSpan(ctx, "set_tick_interval")
	c.mu.Lock()
	defer c.mu.Unlock()

	applied, err := c.clock.SetInterval(d)
	if err != nil {
		return c.endOpLocked(ctx, span, "set_tick_interval", c.reject("set_tick_interval", err))
	}
	c.log.Info(ctx, "tick interval changed", c.fieldsLocked(
		logging.Duration("requested", d),
		logging.Duration("applied", applied),
	)...)
	c.notifyLocked()
	return c.endOpLocked(ctx, span, "set_tick_interval", nil)
}

// SetVesselState forces a live vessel into state. A terminal state removes
// the vessel at the end of the next sweep; Moving re-activates an Idle one.
func (c *Controller) SetVesselState(ctx context.Context, id string, state model.VesselState) (model.VesselSnapshot, error) {
	ctx, span := c.startSpan(ctx, "set_vessel_state")
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.state == model.RunEnded {
		err = c.reject("set_vessel_state", ErrRunEnded)
	} else if _, ok := model.ParseVesselState(string(state)); !ok {
		err = c.reject("set_vessel_state", fmt.Errorf("%w: %q", ErrInvalidVesselState, state))
	}
	if err != nil {
		_, err = c.endOpLocked(ctx, span, "set_vessel_state", err)
		return model.VesselSnapshot{}, err
	}

	v := c.fleet.Get(id)
	if v == nil {
		_, err = c.endOpLocked(ctx, span, "set_vessel_state",
			c.reject("set_vessel_state", fmt.Errorf("%w: %q", ErrVesselNotFound, id)))
		return model.VesselSnapshot{}, err
	}

	parsed, _ := model.ParseVesselState(string(state))
	prev := v.State
	v.State = parsed
	c.log.Info(ctx, "vessel state overridden", c.fieldsLocked(
		logging.String("vessel_id", id),
		logging.String("from", string(prev)),
		logging.String("to", string(parsed)),
	)...)
	c.notifyLocked()

	snap := v.Snapshot()
	c.endOpLocked(ctx, span, "set_vessel_state", nil)
	return snap, nil
}

func (c *Controller) reject(op string, err error) error {
	return &OperationError{Op: op, State: c.state, Err: err}
}

func (c *Controller) setStateLocked(s model.RunState) {
	c.state = s
	if c.metrics != nil {
		c.metrics.SetRunState(s)
	}
}

// finishLocked moves the run to Ended with the given outcome.
func (c *Controller) finishLocked(ctx context.Context, outcome model.Outcome) {
	c.stopLoopLocked()
	c.setStateLocked(model.RunEnded)
	c.outcome = outcome
	close(c.finished)
	if c.metrics != nil {
		c.metrics.IncRunOutcome(outcome)
	}

	ended := make(map[string]int, len(c.summary.Departures))
	for k, v := range c.summary.Departures {
		ended[string(k)] = v
	}
	c.log.Info(ctx, "run ended", c.fieldsLocked(
		logging.String("outcome", string(outcome)),
		logging.Int("spawned", c.summary.Spawned),
		logging.Any("departures", ended),
		logging.Int("live_vessels", c.fleet.Len()),
	)...)
	c.notifyLocked()
}

func (c *Controller) resetLocked(ctx context.Context) {
	c.stopLoopLocked()
	c.clearRunLocked()
	c.cfg = model.RunConfig{}
	c.configured = false
	c.setStateLocked(model.RunSetup)
	c.log.Info(ctx, "run reset", c.fieldsLocked()...)
	c.notifyLocked()
}

// clearRunLocked discards everything a run accumulated but keeps the
// committed configuration.
func (c *Controller) clearRunLocked() {
	c.tick = 0
	c.outcome = model.OutcomeNone
	c.populated = false
	c.spawner = nil
	c.fleet.Clear()
	c.events.Clear()
	c.summary = newSummary()
	c.runID = uuid.NewString()
	select {
	case <-c.finished:
		c.finished = make(chan struct{})
	default:
	}
}
