package run

import (
	"context"
	"time"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/model"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

func (c *Controller) startLoopLocked() {
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	timectrl.Run(ctx, c.pacer, func() bool { return c.loopTick(gen) })
}

func (c *Controller) stopLoopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// loopTick is the automatic loop body. It returns false once the loop's
// generation is stale or the run has completed.
func (c *Controller) loopTick(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != model.RunRunning {
		return false
	}
	ctx := context.Background()
	if c.reachedDurationLocked() {
		c.finishLocked(ctx, model.OutcomeCompleted)
		return false
	}
	c.advanceLocked(ctx)
	if c.reachedDurationLocked() {
		c.finishLocked(ctx, model.OutcomeCompleted)
		return false
	}
	return true
}

// advanceLocked runs one sweep: every live vessel steps once in insertion
// order, terminal vessels are compacted out, then events due at the new
// tick fire so their effects are part of the post-tick snapshot.
func (c *Controller) advanceLocked(ctx context.Context) {
	start := time.Now()
	c.tick++

	c.fleet.Each(func(v *core.Vessel) {
		res := c.nav.Step(v)
		if c.metrics != nil {
			c.metrics.IncNavigation(res)
		}
		if res == core.StepBlocked {
			c.log.Debug(ctx, "vessel blocked by terrain", c.fieldsLocked(
				logging.String("vessel_id", v.ID),
				logging.Float64("x", v.Position.X),
				logging.Float64("y", v.Position.Y),
			)...)
		}
	})
	c.fleet.Compact()
	c.events.RunDue(c.tick)

	if c.metrics != nil {
		c.metrics.ObserveTick(time.Since(start), c.fleet.Len())
	}
	c.notifyLocked()
}

func (c *Controller) reachedDurationLocked() bool {
	return c.configured && !c.cfg.Endless() && c.tick >= uint64(c.cfg.DurationTicks)
}

// populateLocked seeds the spawner and schedules the scenario on the first
// Start or Step of a run. Tick-0 orders fire immediately.
func (c *Controller) populateLocked() {
	if c.populated {
		return
	}
	c.populated = true
	c.spawner = core.NewSpawner(c.cfg.Seed, c.scenario.Templates)

	// Events outlive the request that populated the run.
	ctx := context.Background()

	for _, order := range c.scenario.Spawns {
		c.events.Schedule(order.Tick, func() { c.spawnLocked(ctx, order) })
	}
	for _, ov := range c.scenario.Overrides {
		c.events.Schedule(ov.Tick, func() { c.overrideLocked(ctx, ov) })
	}
	c.events.RunDue(0)
}

func (c *Controller) spawnLocked(ctx context.Context, order core.SpawnOrder) {
	for i := 0; i < order.Count; i++ {
		v, err := c.spawner.Spawn(order.Kind)
		if err != nil {
			c.log.Warn(ctx, "spawn failed", c.fieldsLocked(
				logging.String("kind", string(order.Kind)),
				logging.Err(err),
			)...)
			return
		}
		if err := c.fleet.Add(v); err != nil {
			c.log.Warn(ctx, "spawned vessel rejected", c.fieldsLocked(
				logging.String("vessel_id", v.ID),
				logging.Err(err),
			)...)
		}
	}
}

func (c *Controller) overrideLocked(ctx context.Context, ov core.StateOverride) {
	v := c.fleet.Get(ov.VesselID)
	if v == nil {
		c.log.Warn(ctx, "scripted override target not live", c.fieldsLocked(
			logging.String("vessel_id", ov.VesselID),
			logging.String("to", string(ov.State)),
		)...)
		return
	}
	prev := v.State
	v.State = ov.State
	c.log.Info(ctx, "scripted vessel state override", c.fieldsLocked(
		logging.String("vessel_id", ov.VesselID),
		logging.String("from", string(prev)),
		logging.String("to", string(ov.State)),
	)...)
}
