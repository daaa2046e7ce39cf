package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/model"
)

// RunCollector exposes tick engine metrics. It implements run.MetricsRecorder.
type RunCollector struct {
	TicksTotal     prometheus.Counter
	TickDuration   prometheus.Histogram
	LiveVessels    prometheus.Gauge
	NavigationStep *prometheus.CounterVec
	Spawned        *prometheus.CounterVec
	Departures     *prometheus.CounterVec
	RunOutcomes    *prometheus.CounterVec
	RunState       *prometheus.GaugeVec
}

// NewRunCollector registers run metrics against the provided registerer.
func NewRunCollector(reg prometheus.Registerer) (*RunCollector, error) {
	reg, _ = resolveRegistry(reg)

	ticks, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_total",
		Help: "Total number of simulation ticks executed.",
	}))
	if err != nil {
		return nil, err
	}

	tickHistogram, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock time spent advancing the live fleet by one tick.",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}))
	if err != nil {
		return nil, err
	}

	live, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_live_vessels",
		Help: "Number of vessels in the live set after the last tick.",
	}))
	if err != nil {
		return nil, err
	}

	nav, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_navigation_steps_total",
		Help: "Per-vessel navigation outcomes, labeled by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	spawned, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_vessels_spawned_total",
		Help: "Vessels added to the live set, labeled by kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	departures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_vessel_departures_total",
		Help: "Vessels removed from the live set, labeled by terminal state.",
	}, []string{"state"}))
	if err != nil {
		return nil, err
	}

	outcomes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_runs_total",
		Help: "Runs that reached Ended, labeled by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	state, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_run_state",
		Help: "1 for the current run state, 0 otherwise.",
	}, []string{"state"}))
	if err != nil {
		return nil, err
	}

	// Pre-create label sets so every series is exported from the start.
	for _, r := range core.StepResults() {
		nav.WithLabelValues(string(r))
	}
	for _, s := range []model.RunState{model.RunSetup, model.RunRunning, model.RunPaused, model.RunEnded} {
		state.WithLabelValues(string(s))
	}
	state.WithLabelValues(string(model.RunSetup)).Set(1)

	return &RunCollector{
		TicksTotal:     ticks,
		TickDuration:   tickHistogram,
		LiveVessels:    live,
		NavigationStep: nav,
		Spawned:        spawned,
		Departures:     departures,
		RunOutcomes:    outcomes,
		RunState:       state,
	}, nil
}

// ObserveTick records one completed tick.
func (c *RunCollector) ObserveTick(d time.Duration, liveVessels int) {
	if c == nil {
		return
	}
	if c.TicksTotal != nil {
		c.TicksTotal.Inc()
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(d.Seconds())
	}
	if c.LiveVessels != nil {
		c.LiveVessels.Set(float64(liveVessels))
	}
}

// IncNavigation counts one navigation step result.
func (c *RunCollector) IncNavigation(result core.StepResult) {
	if c == nil || c.NavigationStep == nil {
		return
	}
	c.NavigationStep.WithLabelValues(string(result)).Inc()
}

// IncSpawned counts a vessel joining the live set.
func (c *RunCollector) IncSpawned(kind model.Kind) {
	if c == nil || c.Spawned == nil {
		return
	}
	c.Spawned.WithLabelValues(string(kind)).Inc()
}

// IncDeparture counts a vessel leaving the live set.
func (c *RunCollector) IncDeparture(state model.VesselState) {
	if c == nil || c.Departures == nil {
		return
	}
	c.Departures.WithLabelValues(string(state)).Inc()
}

// IncRunOutcome counts a run reaching Ended.
func (c *RunCollector) IncRunOutcome(outcome model.Outcome) {
	if c == nil || c.RunOutcomes == nil {
		return
	}
	c.RunOutcomes.WithLabelValues(string(outcome)).Inc()
}

// SetRunState flips the state gauge to the given state.
func (c *RunCollector) SetRunState(state model.RunState) {
	if c == nil || c.RunState == nil {
		return
	}
	for _, s := range []model.RunState{model.RunSetup, model.RunRunning, model.RunPaused, model.RunEnded} {
		v := 0.0
		if s == state {
			v = 1
		}
		c.RunState.WithLabelValues(string(s)).Set(v)
	}
}
