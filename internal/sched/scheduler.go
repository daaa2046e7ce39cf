package sched

import (
	"fmt"
	"sort"
)

// EventScheduler runs callbacks once the simulation reaches a given tick.
//
// The run controller calls RunDue after every sweep with the new tick count.
// Events due at the same tick run in the order they were scheduled, which
// keeps spawns and scripted overrides deterministic.
//
// EventScheduler is not safe for concurrent use; its owner serialises access.
type EventScheduler struct {
	counter uint64
	events  []*scheduledEvent // ordered by (at, seq)
	index   map[string]*scheduledEvent
}

type scheduledEvent struct {
	id        string
	at        uint64
	seq       uint64
	f         func()
	cancelled bool
}

// NewEventScheduler creates an empty scheduler.
func NewEventScheduler() *EventScheduler {
	return &EventScheduler{index: make(map[string]*scheduledEvent)}
}

// Schedule registers f to run at tick at. It returns an opaque ID usable with Cancel.
func (s *EventScheduler) Schedule(at uint64, f func()) (id string) {
	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)
	ev := &scheduledEvent{id: id, at: at, seq: s.counter, f: f}

	// Insert after every event with at' <= at to keep FIFO order within a tick.
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].at > at
	})
	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev

	s.index[id] = ev
	return id
}

// Cancel drops a pending event. It is a no-op if the ID is unknown or the event already ran.
func (s *EventScheduler) Cancel(id string) {
	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

// RunDue executes, in order, every pending event whose tick is <= now.
// Events scheduled by a callback for a tick <= now also run in this call.
func (s *EventScheduler) RunDue(now uint64) int {
	ran := 0
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.at > now {
			break
		}
		s.events = s.events[1:]
		if ev.cancelled {
			continue
		}
		delete(s.index, ev.id)
		if ev.f != nil {
			ev.f()
			ran++
		}
	}
	return ran
}

// Len returns the number of pending, non-cancelled events.
func (s *EventScheduler) Len() int {
	return len(s.index)
}

// Clear drops every pending event.
func (s *EventScheduler) Clear() {
	s.events = nil
	s.index = make(map[string]*scheduledEvent)
}
