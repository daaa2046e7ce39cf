package fleet

import (
	"fmt"
	"testing"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/model"
)

func vessel(id string, st model.VesselState) *core.Vessel {
	return &core.Vessel{ID: id, Kind: model.KindCargo, State: st}
}

func ids(f *Fleet) []string {
	var out []string
	f.Each(func(v *core.Vessel) { out = append(out, v.ID) })
	return out
}

func TestAddAndGetVessel(t *testing.T) {
	f := New()
	if err := f.Add(vessel("v1", model.StateMoving)); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if got := f.Get("v1"); got == nil || got.ID != "v1" {
		t.Fatalf("Get returned %#v, want v1", got)
	}
	if f.Get("missing") != nil {
		t.Fatalf("Get(missing) should be nil")
	}
}

func TestAddVesselDuplicate(t *testing.T) {
	f := New()
	if err := f.Add(vessel("v1", model.StateMoving)); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if err := f.Add(vessel("v1", model.StateIdle)); err == nil {
		t.Fatalf("expected duplicate Add to fail")
	}
	if err := f.Add(nil); err == nil {
		t.Fatalf("expected nil Add to fail")
	}
}

func TestEachKeepsInsertionOrder(t *testing.T) {
	f := New()
	for i := range 5 {
		_ = f.Add(vessel(fmt.Sprintf("v%d", i), model.StateMoving))
	}
	got := ids(f)
	for i, id := range got {
		if id != fmt.Sprintf("v%d", i) {
			t.Fatalf("order = %v, want v0..v4", got)
		}
	}
}

func TestCompactRemovesTerminalKeepingOrder(t *testing.T) {
	f := New()
	_ = f.Add(vessel("a", model.StateMoving))
	_ = f.Add(vessel("b", model.StateExited))
	_ = f.Add(vessel("c", model.StateIdle))
	_ = f.Add(vessel("d", model.StateSunk))
	_ = f.Add(vessel("e", model.StateCaptured))
	_ = f.Add(vessel("g", model.StateEscaped))

	removed := f.Compact()
	if len(removed) != 3 || removed[0].ID != "b" || removed[1].ID != "d" || removed[2].ID != "e" {
		t.Fatalf("removed = %v, want b,d,e", removed)
	}
	got := ids(f)
	want := []string{"a", "c", "g"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("survivors = %v, want %v", got, want)
	}
	if f.Get("b") != nil {
		t.Fatalf("removed vessel still indexed")
	}
	if f.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.Len())
	}
}

func TestEachVisitsEveryVesselWhenStatesChange(t *testing.T) {
	f := New()
	for i := range 4 {
		_ = f.Add(vessel(fmt.Sprintf("v%d", i), model.StateMoving))
	}
	visited := 0
	f.Each(func(v *core.Vessel) {
		visited++
		v.State = model.StateExited
	})
	if visited != 4 {
		t.Fatalf("visited %d vessels, want 4", visited)
	}
	if n := len(f.Compact()); n != 4 || f.Len() != 0 {
		t.Fatalf("compact removed %d, %d left", n, f.Len())
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	f := New()
	var added, departed []string
	unsub := f.Subscribe(func(ev Event) {
		switch ev.Type {
		case EventVesselAdded:
			added = append(added, ev.Vessel.ID)
		case EventVesselDeparted:
			departed = append(departed, ev.Vessel.ID)
		}
	})

	_ = f.Add(vessel("a", model.StateMoving))
	_ = f.Add(vessel("b", model.StateExited))
	f.Compact()
	if len(added) != 2 || len(departed) != 1 || departed[0] != "b" {
		t.Fatalf("added=%v departed=%v", added, departed)
	}

	unsub()
	_ = f.Add(vessel("c", model.StateMoving))
	if len(added) != 2 {
		t.Fatalf("received event after unsubscribe")
	}
}

func TestClearDropsSilently(t *testing.T) {
	f := New()
	events := 0
	f.Subscribe(func(Event) { events++ })
	_ = f.Add(vessel("a", model.StateMoving))
	f.Clear()
	if f.Len() != 0 || f.Get("a") != nil || events != 1 {
		t.Fatalf("Clear left len=%d events=%d", f.Len(), events)
	}
	if err := f.Add(vessel("a", model.StateMoving)); err != nil {
		t.Fatalf("re-adding after Clear: %v", err)
	}
}
