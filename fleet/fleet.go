package fleet

import (
	"fmt"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/model"
)

// EventType indicates what kind of change happened in the fleet.
type EventType int

const (
	EventVesselAdded EventType = iota
	EventVesselDeparted
)

// Event is emitted to subscribers when a vessel joins or leaves the live set.
type Event struct {
	Type   EventType
	Vessel model.VesselSnapshot
}

// Fleet is the run-wide live set. Iteration order is insertion order.
//
// Fleet is not safe for concurrent use; the run controller that owns it
// serialises all access.
type Fleet struct {
	vessels []*core.Vessel
	index   map[string]*core.Vessel

	subs   map[int]func(Event)
	nextID int
}

// New constructs an empty fleet.
func New() *Fleet {
	return &Fleet{
		index: make(map[string]*core.Vessel),
		subs:  make(map[int]func(Event)),
	}
}

// Add appends a vessel. It returns an error if the ID is already live.
func (f *Fleet) Add(v *core.Vessel) error {
	if v == nil {
		return fmt.Errorf("nil vessel")
	}
	if _, exists := f.index[v.ID]; exists {
		return fmt.Errorf("vessel with ID %q already exists", v.ID)
	}
	f.vessels = append(f.vessels, v)
	f.index[v.ID] = v
	f.notify(Event{Type: EventVesselAdded, Vessel: v.Snapshot()})
	return nil
}

// Get returns the live vessel with the given ID, or nil.
func (f *Fleet) Get(id string) *core.Vessel {
	return f.index[id]
}

// Len returns the number of live vessels.
func (f *Fleet) Len() int { return len(f.vessels) }

// Each calls fn for every live vessel in insertion order. The set is not
// modified while Each runs, so every vessel is visited exactly once even if
// fn moves one into a terminal state.
func (f *Fleet) Each(fn func(*core.Vessel)) {
	for _, v := range f.vessels {
		fn(v)
	}
}

// Snapshot returns detached copies of every live vessel in insertion order.
func (f *Fleet) Snapshot() []model.VesselSnapshot {
	out := make([]model.VesselSnapshot, 0, len(f.vessels))
	for _, v := range f.vessels {
		out = append(out, v.Snapshot())
	}
	return out
}

// Compact drops every vessel in a terminal state, keeping the relative order
// of the survivors, and returns the removed vessels in their former order.
func (f *Fleet) Compact() []*core.Vessel {
	var removed []*core.Vessel
	kept := f.vessels[:0]
	for _, v := range f.vessels {
		if v.State.Terminal() {
			removed = append(removed, v)
			delete(f.index, v.ID)
			continue
		}
		kept = append(kept, v)
	}
	for i := len(kept); i < len(f.vessels); i++ {
		f.vessels[i] = nil
	}
	f.vessels = kept

	for _, v := range removed {
		f.notify(Event{Type: EventVesselDeparted, Vessel: v.Snapshot()})
	}
	return removed
}

// Clear drops every vessel without emitting departure events.
func (f *Fleet) Clear() {
	f.vessels = nil
	f.index = make(map[string]*core.Vessel)
}

// Subscribe registers a callback for fleet events. It returns an unsubscribe function.
func (f *Fleet) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() { delete(f.subs, id) }
}

func (f *Fleet) notify(ev Event) {
	for id := 0; id < f.nextID; id++ {
		if sub, ok := f.subs[id]; ok {
			sub(ev)
		}
	}
}
