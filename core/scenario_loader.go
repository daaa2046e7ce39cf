// core/scenario_loader.go
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/maritime-simulator/model"
)

// ErrInvalidScenario wraps every structural problem found while loading a scenario.
var ErrInvalidScenario = errors.New("invalid scenario")

// SpawnOrder asks for Count vessels of Kind once the run reaches Tick.
// Orders at tick 0 form the initial fleet.
type SpawnOrder struct {
	Tick  uint64
	Kind  model.Kind
	Count int
}

// StateOverride forces a vessel into State once the run reaches Tick.
type StateOverride struct {
	Tick     uint64
	VesselID string
	State    model.VesselState
}

// Scenario is everything a run needs beyond its committed duration and seed.
type Scenario struct {
	Templates []SpawnTemplate
	Spawns    []SpawnOrder
	Overrides []StateOverride
}

// DefaultScenario is a single jittered cargo ship crossing the map west to east.
func DefaultScenario() *Scenario {
	return &Scenario{
		Templates: []SpawnTemplate{{
			Kind:       model.KindCargo,
			SpawnPoint: r2.Vec{X: -4, Y: 0},
			Waypoints: []r2.Vec{
				{X: -4, Y: -2},
				{X: -2, Y: 1},
				{X: 1, Y: 2},
				{X: 4, Y: 0},
			},
			Speed:       0.05,
			Jitter:      JitterY,
			JitterBound: DefaultJitterBound,
		}},
		Spawns: []SpawnOrder{{Tick: 0, Kind: model.KindCargo, Count: 1}},
	}
}

// internal JSON shapes – unexported so the file format can evolve independently.
type scenarioJSON struct {
	Templates []templateJSON `json:"templates"`
	Spawns    []spawnJSON    `json:"spawns"`
	Overrides []overrideJSON `json:"overrides"`
}

type templateJSON struct {
	Kind        string      `json:"kind"`
	Spawn       pointJSON   `json:"spawn"`
	Waypoints   []pointJSON `json:"waypoints"`
	Speed       float64     `json:"speed"`
	Jitter      string      `json:"jitter"`       // "x" | "y" | "none"
	JitterBound *float64    `json:"jitter_bound"` // optional; defaults to 0.3
}

type spawnJSON struct {
	Tick  uint64 `json:"tick"`
	Kind  string `json:"kind"`
	Count *int   `json:"count"` // optional; defaults to 1
}

type overrideJSON struct {
	Tick   uint64 `json:"tick"`
	Vessel string `json:"vessel"`
	State  string `json:"state"`
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LoadScenario reads a JSON scenario from r and validates it. Spawn orders
// and overrides are returned sorted by tick, keeping file order within a tick.
func LoadScenario(r io.Reader) (*Scenario, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrInvalidScenario)
	}

	var raw scenarioJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	sc := &Scenario{}
	seen := make(map[model.Kind]bool)
	for i, t := range raw.Templates {
		kind, ok := model.ParseKind(t.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: template %d: unknown kind %q", ErrInvalidScenario, i, t.Kind)
		}
		if seen[kind] {
			return nil, fmt.Errorf("%w: duplicate template for %s", ErrInvalidScenario, kind)
		}
		seen[kind] = true
		if t.Speed < 0 {
			return nil, fmt.Errorf("%w: template %s: negative speed", ErrInvalidScenario, kind)
		}
		axis, err := jitterFromString(t.Jitter)
		if err != nil {
			return nil, fmt.Errorf("%w: template %s: %v", ErrInvalidScenario, kind, err)
		}
		bound := DefaultJitterBound
		if t.JitterBound != nil {
			bound = *t.JitterBound
		}
		if bound < 0 {
			return nil, fmt.Errorf("%w: template %s: negative jitter bound", ErrInvalidScenario, kind)
		}

		wps := make([]r2.Vec, 0, len(t.Waypoints))
		for _, wp := range t.Waypoints {
			wps = append(wps, r2.Vec{X: wp.X, Y: wp.Y})
		}
		sc.Templates = append(sc.Templates, SpawnTemplate{
			Kind:        kind,
			SpawnPoint:  r2.Vec{X: t.Spawn.X, Y: t.Spawn.Y},
			Waypoints:   wps,
			Speed:       t.Speed,
			Jitter:      axis,
			JitterBound: bound,
		})
	}

	for i, s := range raw.Spawns {
		kind, ok := model.ParseKind(s.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: spawn %d: unknown kind %q", ErrInvalidScenario, i, s.Kind)
		}
		if !seen[kind] {
			return nil, fmt.Errorf("%w: spawn %d: %v %s", ErrInvalidScenario, i, ErrUnknownKind, kind)
		}
		count := 1
		if s.Count != nil {
			count = *s.Count
		}
		if count < 1 {
			return nil, fmt.Errorf("%w: spawn %d: count must be positive", ErrInvalidScenario, i)
		}
		sc.Spawns = append(sc.Spawns, SpawnOrder{Tick: s.Tick, Kind: kind, Count: count})
	}

	for i, o := range raw.Overrides {
		if strings.TrimSpace(o.Vessel) == "" {
			return nil, fmt.Errorf("%w: override %d: missing vessel", ErrInvalidScenario, i)
		}
		st, ok := model.ParseVesselState(o.State)
		if !ok {
			return nil, fmt.Errorf("%w: override %d: unknown state %q", ErrInvalidScenario, i, o.State)
		}
		sc.Overrides = append(sc.Overrides, StateOverride{Tick: o.Tick, VesselID: o.Vessel, State: st})
	}

	sort.SliceStable(sc.Spawns, func(i, j int) bool { return sc.Spawns[i].Tick < sc.Spawns[j].Tick })
	sort.SliceStable(sc.Overrides, func(i, j int) bool { return sc.Overrides[i].Tick < sc.Overrides[j].Tick })
	return sc, nil
}

func jitterFromString(s string) (JitterAxis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return JitterNone, nil
	case "x":
		return JitterX, nil
	case "y":
		return JitterY, nil
	default:
		return "", fmt.Errorf("unknown jitter axis %q", s)
	}
}
