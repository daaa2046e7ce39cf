package core

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/maritime-simulator/model"
)

// DefaultArrivalEpsilon is the distance under which a waypoint counts as reached.
const DefaultArrivalEpsilon = 0.05

// Vessel is one simulated ship. It is owned by the run's live set and mutated
// only by Navigator.Step or by an explicit state override.
type Vessel struct {
	ID    string
	Kind  model.Kind
	State model.VesselState

	Position r2.Vec
	// Heading is the unit direction of the last intended move.
	Heading r2.Vec
	// Speed is the distance covered per tick.
	Speed float64

	// Route may be nil; a vessel without one idles.
	Route *Route
}

// Snapshot returns a detached copy of the vessel's observable fields.
func (v *Vessel) Snapshot() model.VesselSnapshot {
	return model.VesselSnapshot{
		ID:       v.ID,
		Kind:     v.Kind,
		State:    v.State,
		Position: model.Point{X: v.Position.X, Y: v.Position.Y},
		Heading:  model.Point{X: v.Heading.X, Y: v.Heading.Y},
		Speed:    v.Speed,
		Waypoint: v.Route.Cursor(),
		RouteLen: v.Route.Len(),
	}
}

// StepResult describes what a single navigation step did to a vessel.
type StepResult string

const (
	// StepSkipped: the vessel was not Moving.
	StepSkipped StepResult = "skipped"
	// StepNoRoute: the vessel had no waypoint left and went Idle.
	StepNoRoute StepResult = "no_route"
	// StepExited: the final waypoint was reached.
	StepExited StepResult = "exited"
	// StepArrived: a waypoint was reached and the next one is also within epsilon.
	StepArrived StepResult = "arrived"
	// StepMoved: the direct step was committed.
	StepMoved StepResult = "moved"
	// StepSlidX / StepSlidY: the direct step hit land and one axis was committed.
	StepSlidX StepResult = "slid_x"
	StepSlidY StepResult = "slid_y"
	// StepBlocked: every candidate hit land and the vessel went Idle.
	StepBlocked StepResult = "blocked"
)

// StepResults lists every result value, for metric pre-registration.
func StepResults() []StepResult {
	return []StepResult{
		StepSkipped, StepNoRoute, StepExited, StepArrived,
		StepMoved, StepSlidX, StepSlidY, StepBlocked,
	}
}

// Navigator advances vessels along their routes over a terrain mask.
type Navigator struct {
	Terrain        TerrainQuery
	ArrivalEpsilon float64
}

// NewNavigator returns a Navigator. A nil terrain means open water and a
// non-positive epsilon falls back to DefaultArrivalEpsilon.
func NewNavigator(terrain TerrainQuery, epsilon float64) *Navigator {
	if terrain == nil {
		terrain = OpenWater{}
	}
	if epsilon <= 0 {
		epsilon = DefaultArrivalEpsilon
	}
	return &Navigator{Terrain: terrain, ArrivalEpsilon: epsilon}
}

// Step advances v by one tick.
//
// Only Moving vessels are touched. A waypoint within epsilon is consumed
// before moving, but at most one per tick. When the direct step lands on
// non-navigable terrain the X-only then the Y-only displacement is tried; if
// both fail the vessel goes Idle without moving. Heading always takes the
// intended direction, even when an axis-only candidate was committed.
func (n *Navigator) Step(v *Vessel) StepResult {
	if v == nil || v.State != model.StateMoving {
		return StepSkipped
	}
	if !v.Route.HasWaypoint() {
		v.State = model.StateIdle
		return StepNoRoute
	}

	toTarget := r2.Sub(v.Route.Current(), v.Position)
	dist := r2.Norm(toTarget)

	if dist <= n.ArrivalEpsilon {
		v.Route.Advance()
		if !v.Route.HasWaypoint() {
			v.State = model.StateExited
			return StepExited
		}
		toTarget = r2.Sub(v.Route.Current(), v.Position)
		dist = r2.Norm(toTarget)
		if dist <= n.ArrivalEpsilon {
			return StepArrived
		}
	}

	dir := r2.Scale(1/dist, toTarget)
	step := r2.Scale(v.Speed, dir)

	result := StepMoved
	next := r2.Add(v.Position, step)
	if !n.Terrain.IsNavigable(next) {
		tryX := r2.Vec{X: v.Position.X + step.X, Y: v.Position.Y}
		tryY := r2.Vec{X: v.Position.X, Y: v.Position.Y + step.Y}
		switch {
		case n.Terrain.IsNavigable(tryX):
			next, result = tryX, StepSlidX
		case n.Terrain.IsNavigable(tryY):
			next, result = tryY, StepSlidY
		default:
			v.State = model.StateIdle
			return StepBlocked
		}
	}

	v.Position = next
	v.Heading = dir
	return result
}
