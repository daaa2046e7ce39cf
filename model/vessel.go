package model

import "strings"

// Kind tags what sort of vessel an entity is. The set is closed per build but
// new kinds can be added alongside their spawn templates.
type Kind string

const (
	KindCargo    Kind = "Cargo"
	KindPirate   Kind = "Pirate"
	KindSecurity Kind = "Security"
)

// Kinds lists every known vessel kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindCargo, KindPirate, KindSecurity}
}

// ParseKind maps a case-insensitive name onto a Kind.
func ParseKind(s string) (Kind, bool) {
	v := strings.TrimSpace(s)
	for _, k := range Kinds() {
		if strings.EqualFold(v, string(k)) {
			return k, true
		}
	}
	return "", false
}

// VesselState is the lifecycle state of a single vessel.
type VesselState string

const (
	StateIdle     VesselState = "Idle"
	StateMoving   VesselState = "Moving"
	StateAttacked VesselState = "Attacked"
	StateCaptured VesselState = "Captured"
	StateEscaped  VesselState = "Escaped"
	StateSunk     VesselState = "Sunk"
	StateExited   VesselState = "Exited"
)

// VesselStates lists every lifecycle state in declaration order.
func VesselStates() []VesselState {
	return []VesselState{
		StateIdle,
		StateMoving,
		StateAttacked,
		StateCaptured,
		StateEscaped,
		StateSunk,
		StateExited,
	}
}

// ParseVesselState maps a case-insensitive name onto a VesselState.
func ParseVesselState(s string) (VesselState, bool) {
	v := strings.TrimSpace(s)
	for _, st := range VesselStates() {
		if strings.EqualFold(v, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether a vessel in this state leaves the live set.
func (s VesselState) Terminal() bool {
	switch s {
	case StateExited, StateSunk, StateCaptured:
		return true
	default:
		return false
	}
}

// Point is a world-space coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VesselSnapshot is a read-only copy of one live vessel taken between ticks.
type VesselSnapshot struct {
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind"`
	State    VesselState `json:"state"`
	Position Point       `json:"position"`
	Heading  Point       `json:"heading"`
	Speed    float64     `json:"speed"`

	// Waypoint is the index of the current route waypoint; RouteLen is the
	// total number of waypoints (0 when the vessel has no route).
	Waypoint int `json:"waypoint"`
	RouteLen int `json:"route_len"`
}
