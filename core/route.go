package core

import "gonum.org/v1/gonum/spatial/r2"

// Route is an ordered list of waypoints with a traversal cursor. The waypoint
// list is fixed once built; only the cursor moves, and only forward.
type Route struct {
	waypoints []r2.Vec
	cursor    int
}

// NewRoute copies waypoints into a new Route positioned at the first waypoint.
// Later changes to the caller's slice do not affect the route.
func NewRoute(waypoints []r2.Vec) *Route {
	wps := make([]r2.Vec, len(waypoints))
	copy(wps, waypoints)
	return &Route{waypoints: wps}
}

// HasWaypoint reports whether the cursor still points at a waypoint.
func (r *Route) HasWaypoint() bool {
	return r != nil && r.cursor < len(r.waypoints)
}

// Current returns the waypoint under the cursor. Callers must check
// HasWaypoint first; Current panics on an exhausted route.
func (r *Route) Current() r2.Vec {
	return r.waypoints[r.cursor]
}

// Advance moves the cursor forward by one, saturating at Len.
func (r *Route) Advance() {
	if r == nil {
		return
	}
	if r.cursor < len(r.waypoints) {
		r.cursor++
	}
}

// Len returns the number of waypoints.
func (r *Route) Len() int {
	if r == nil {
		return 0
	}
	return len(r.waypoints)
}

// Cursor returns the index of the current waypoint, or Len once exhausted.
func (r *Route) Cursor() int {
	if r == nil {
		return 0
	}
	return r.cursor
}

// Waypoints returns a copy of the route's waypoints.
func (r *Route) Waypoints() []r2.Vec {
	if r == nil {
		return nil
	}
	out := make([]r2.Vec, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}
