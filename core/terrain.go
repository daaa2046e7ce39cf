package core

import "gonum.org/v1/gonum/spatial/r2"

// TerrainQuery answers whether a world point can be sailed through.
//
// Implementations must be side-effect free and stable for the lifetime of a
// run, and must report points outside the mapped area as navigable so that
// vessels can leave the map.
type TerrainQuery interface {
	IsNavigable(p r2.Vec) bool
}

// TerrainFunc adapts a plain function to TerrainQuery.
type TerrainFunc func(p r2.Vec) bool

// IsNavigable calls f(p).
func (f TerrainFunc) IsNavigable(p r2.Vec) bool { return f(p) }

// OpenWater is a TerrainQuery where every point is navigable. It is used when
// no terrain mask is configured.
type OpenWater struct{}

// IsNavigable always returns true.
func (OpenWater) IsNavigable(r2.Vec) bool { return true }
