// Package run owns the lifecycle of one simulation run: committed
// configuration, the tick counter, the live fleet, the seeded spawner and
// the automatic tick loop.
package run

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/fleet"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/internal/sched"
	"github.com/signalsfoundry/maritime-simulator/model"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

// DefaultMaxDuration is the longest finite run accepted at commit.
const DefaultMaxDuration = 5000

const tracerName = "github.com/signalsfoundry/maritime-simulator/internal/sim/run"

// MetricsRecorder receives per-tick and lifecycle measurements.
type MetricsRecorder interface {
	ObserveTick(d time.Duration, liveVessels int)
	IncNavigation(result core.StepResult)
	IncSpawned(kind model.Kind)
	IncDeparture(state model.VesselState)
	IncRunOutcome(outcome model.Outcome)
	SetRunState(state model.RunState)
}

// TickObserver is called with a consistent snapshot after every tick and
// every lifecycle transition. It runs while the controller is locked and
// must not call back into the controller.
type TickObserver func(model.RunSnapshot)

// Controller is the run lifecycle state machine. All methods are safe for
// concurrent use; ticks never overlap and observers never see a partial tick.
type Controller struct {
	mu sync.Mutex

	runID      string
	state      model.RunState
	outcome    model.Outcome
	cfg        model.RunConfig
	configured bool
	tick       uint64
	populated  bool
	summary    model.Summary

	scenario *core.Scenario
	nav      *core.Navigator
	spawner  *core.Spawner
	fleet    *fleet.Fleet
	events   *sched.EventScheduler

	clock *timectrl.TimeController
	pacer timectrl.Pacer

	// gen invalidates loop goroutines: a loop only ticks while its
	// generation is current.
	gen      uint64
	cancel   context.CancelFunc
	finished chan struct{}

	maxDuration int
	epsilon     float64
	interval    time.Duration
	mode        timectrl.Mode
	seedSource  func() int64

	log       logging.Logger
	metrics   MetricsRecorder
	observers []TickObserver
	tracer    trace.Tracer
}

// Option customises Controller construction.
type Option func(*Controller)

// WithArrivalEpsilon overrides the waypoint arrival tolerance.
func WithArrivalEpsilon(eps float64) Option {
	return func(c *Controller) { c.epsilon = eps }
}

// WithTickInterval sets the initial automatic tick period.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithMode selects real-time or accelerated pacing.
func WithMode(m timectrl.Mode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithPacer replaces the interval-based pacer, e.g. with timectrl.Manual.
func WithPacer(p timectrl.Pacer) Option {
	return func(c *Controller) { c.pacer = p }
}

// WithMaxDuration changes the upper bound for finite durations.
func WithMaxDuration(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxDuration = n
		}
	}
}

// WithScenario sets the spawn templates, spawn orders and overrides.
func WithScenario(s *core.Scenario) Option {
	return func(c *Controller) {
		if s != nil {
			c.scenario = s
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithTickObserver registers an observer. May be given more than once.
func WithTickObserver(o TickObserver) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithSeedSource supplies seeds for commits that omit one.
func WithSeedSource(f func() int64) Option {
	return func(c *Controller) {
		if f != nil {
			c.seedSource = f
		}
	}
}

// New constructs a Controller in Setup. The terrain is consulted by every
// navigation step; nil means open water.
func New(terrain core.TerrainQuery, opts ...Option) *Controller {
	c := &Controller{
		state:       model.RunSetup,
		scenario:    core.DefaultScenario(),
		maxDuration: DefaultMaxDuration,
		epsilon:     core.DefaultArrivalEpsilon,
		interval:    timectrl.DefaultInterval,
		mode:        timectrl.RealTime,
		seedSource:  func() int64 { return time.Now().UnixNano() },
		log:         logging.Noop(),
		fleet:       fleet.New(),
		events:      sched.NewEventScheduler(),
		finished:    make(chan struct{}),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.nav = core.NewNavigator(terrain, c.epsilon)
	c.clock = timectrl.NewTimeController(c.interval, c.mode)
	if c.pacer == nil {
		c.pacer = c.clock
	}
	c.runID = uuid.NewString()
	c.summary = newSummary()
	c.fleet.Subscribe(c.onFleetEvent)
	return c
}

// Status returns the current run status.
func (c *Controller) Status() model.RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Snapshot returns the status, live vessels and summary as of the last
// completed tick.
func (c *Controller) Snapshot() model.RunSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until the run ends or ctx is done and returns the status at
// that point.
func (c *Controller) Wait(ctx context.Context) (model.RunStatus, error) {
	c.mu.Lock()
	finished := c.finished
	c.mu.Unlock()

	select {
	case <-finished:
		return c.Status(), nil
	case <-ctx.Done():
		return c.Status(), ctx.Err()
	}
}

func (c *Controller) statusLocked() model.RunStatus {
	return model.RunStatus{
		RunID:         c.runID,
		State:         c.state,
		Outcome:       c.outcome,
		Configured:    c.configured,
		Tick:          c.tick,
		DurationTicks: c.cfg.DurationTicks,
		Endless:       c.configured && c.cfg.Endless(),
		Seed:          c.cfg.Seed,
		TickInterval:  c.clock.Interval(),
		LiveVessels:   c.fleet.Len(),
	}
}

func (c *Controller) snapshotLocked() model.RunSnapshot {
	departures := make(map[model.VesselState]int, len(c.summary.Departures))
	for k, v := range c.summary.Departures {
		departures[k] = v
	}
	return model.RunSnapshot{
		Status:  c.statusLocked(),
		Vessels: c.fleet.Snapshot(),
		Summary: model.Summary{Spawned: c.summary.Spawned, Departures: departures},
	}
}

func (c *Controller) notifyLocked() {
	if len(c.observers) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, o := range c.observers {
		o(snap)
	}
}

func (c *Controller) onFleetEvent(ev fleet.Event) {
	switch ev.Type {
	case fleet.EventVesselAdded:
		c.summary.Spawned++
		if c.metrics != nil {
			c.metrics.IncSpawned(ev.Vessel.Kind)
		}
		c.log.Debug(context.Background(), "vessel spawned",
			logging.String("run_id", c.runID),
			logging.String("vessel_id", ev.Vessel.ID),
			logging.String("kind", string(ev.Vessel.Kind)),
			logging.Uint64("tick", c.tick),
		)
	case fleet.EventVesselDeparted:
		c.summary.Departures[ev.Vessel.State]++
		if c.metrics != nil {
			c.metrics.IncDeparture(ev.Vessel.State)
		}
		c.log.Debug(context.Background(), "vessel departed",
			logging.String("run_id", c.runID),
			logging.String("vessel_id", ev.Vessel.ID),
			logging.String("state", string(ev.Vessel.State)),
			logging.Uint64("tick", c.tick),
		)
	}
}

func (c *Controller) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.tracer.Start(ctx, "run."+op)
}

// endOpLocked closes an operation span and logs rejections. It returns the
// post-operation status alongside err.
func (c *Controller) endOpLocked(ctx context.Context, span trace.Span, op string, err error) (model.RunStatus, error) {
	st := c.statusLocked()
	span.SetAttributes(
		attribute.String("run.id", st.RunID),
		attribute.String("run.state", string(st.State)),
		attribute.Int64("run.tick", int64(st.Tick)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.Warn(ctx, "run operation rejected", c.fieldsLocked(logging.String("op", op), logging.Err(err))...)
	}
	span.End()
	return st, err
}

func (c *Controller) fieldsLocked(extra ...logging.Field) []logging.Field {
	fields := []logging.Field{
		logging.String("run_id", c.runID),
		logging.String("state", string(c.state)),
		logging.Uint64("tick", c.tick),
	}
	return append(fields, extra...)
}

func newSummary() model.Summary {
	return model.Summary{Departures: make(map[model.VesselState]int)}
}
