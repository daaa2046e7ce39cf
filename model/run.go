package model

import (
	"fmt"
	"time"
)

// RunState is the lifecycle state of a simulation run.
type RunState string

const (
	RunSetup   RunState = "SETUP"
	RunRunning RunState = "RUNNING"
	RunPaused  RunState = "PAUSED"
	RunEnded   RunState = "ENDED"
)

// Outcome distinguishes how a run reached Ended.
type Outcome string

const (
	// OutcomeNone means the run has not ended.
	OutcomeNone Outcome = ""
	// OutcomeCompleted means the configured duration was reached.
	OutcomeCompleted Outcome = "COMPLETED"
	// OutcomeEndedByRequest means End was called.
	OutcomeEndedByRequest Outcome = "ENDED"
)

// RunConfig is the configuration committed when leaving Setup.
// DurationTicks of zero means the run is endless. When HasSeed is false the
// controller picks a seed and reports it in RunStatus.
type RunConfig struct {
	DurationTicks int   `json:"duration_ticks"`
	Seed          int64 `json:"seed"`
	HasSeed       bool  `json:"has_seed"`
}

// Endless reports whether the configuration has no duration limit.
func (c RunConfig) Endless() bool { return c.DurationTicks == 0 }

// Summary tallies what happened to vessels over a run.
type Summary struct {
	Spawned    int                 `json:"spawned"`
	Departures map[VesselState]int `json:"departures"`
}

// RunStatus is the run-level part of a snapshot.
type RunStatus struct {
	RunID         string        `json:"run_id"`
	State         RunState      `json:"state"`
	Outcome       Outcome       `json:"outcome"`
	Configured    bool          `json:"configured"`
	Tick          uint64        `json:"tick"`
	DurationTicks int           `json:"duration_ticks"`
	Endless       bool          `json:"endless"`
	Seed          int64         `json:"seed"`
	TickInterval  time.Duration `json:"tick_interval"`
	LiveVessels   int           `json:"live_vessels"`
}

// TickLabel renders the tick counter the way the run panel shows it.
func (s RunStatus) TickLabel() string {
	if s.Endless {
		return fmt.Sprintf("%d (endless)", s.Tick)
	}
	return fmt.Sprintf("%d / %d", s.Tick, s.DurationTicks)
}

// RunSnapshot is a consistent post-tick view of the whole run. Vessels are in
// live-set insertion order.
type RunSnapshot struct {
	Status  RunStatus        `json:"status"`
	Vessels []VesselSnapshot `json:"vessels"`
	Summary Summary          `json:"summary"`
}
