package core

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/maritime-simulator/model"
)

// ErrUnknownKind is returned when no spawn template exists for a kind.
var ErrUnknownKind = errors.New("no spawn template for kind")

// JitterAxis selects which spawn coordinate receives the random offset.
type JitterAxis string

const (
	JitterNone JitterAxis = "none"
	JitterX    JitterAxis = "x"
	JitterY    JitterAxis = "y"
)

// DefaultJitterBound is the half-width of the spawn jitter interval.
const DefaultJitterBound = 0.3

// SpawnTemplate describes how vessels of one kind enter the map.
type SpawnTemplate struct {
	Kind       model.Kind
	SpawnPoint r2.Vec
	Waypoints  []r2.Vec
	Speed      float64

	// Jitter perturbs one axis of SpawnPoint by a value drawn uniformly from
	// [-JitterBound, JitterBound]. JitterNone leaves the RNG untouched.
	Jitter      JitterAxis
	JitterBound float64
}

// Spawner creates vessels from templates using one seeded random source.
// The same seed and the same sequence of Spawn calls yield identical vessels.
type Spawner struct {
	rng       *rand.Rand
	templates map[model.Kind]SpawnTemplate
	counters  map[model.Kind]int
}

// NewSpawner seeds a spawner. Templates are copied.
func NewSpawner(seed int64, templates []SpawnTemplate) *Spawner {
	s := &Spawner{
		rng:       rand.New(rand.NewSource(seed)),
		templates: make(map[model.Kind]SpawnTemplate, len(templates)),
		counters:  make(map[model.Kind]int),
	}
	for _, t := range templates {
		s.templates[t.Kind] = t
	}
	return s
}

// Spawn builds the next vessel of the given kind. The vessel starts Moving
// with its own copy of the template route and a heading of +X.
func (s *Spawner) Spawn(kind model.Kind) (*Vessel, error) {
	tmpl, ok := s.templates[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	pos := tmpl.SpawnPoint
	if tmpl.Jitter == JitterX || tmpl.Jitter == JitterY {
		bound := tmpl.JitterBound
		if bound < 0 {
			bound = 0
		}
		j := s.rng.Float64()*2*bound - bound
		if tmpl.Jitter == JitterX {
			pos.X += j
		} else {
			pos.Y += j
		}
	}

	s.counters[kind]++
	return &Vessel{
		ID:       fmt.Sprintf("%s-%d", kind, s.counters[kind]),
		Kind:     kind,
		State:    model.StateMoving,
		Position: pos,
		Heading:  r2.Vec{X: 1, Y: 0},
		Speed:    tmpl.Speed,
		Route:    NewRoute(tmpl.Waypoints),
	}, nil
}
