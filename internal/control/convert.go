package control

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/maritime-simulator/model"
)

// Wire layout. Seeds travel as decimal strings because structpb numbers are
// float64 and time-derived seeds exceed 2^53.
//
//	status:   run_id, state, outcome, configured, tick, duration_ticks,
//	          endless, seed, tick_interval_seconds, live_vessels, tick_label
//	vessel:   id, kind, state, position{x,y}, heading{x,y}, speed,
//	          waypoint, route_len
//	snapshot: status, vessels[], summary{spawned, departures{state: n}}
//	commit:   duration_ticks, seed (optional string or integral number;
//	          null or blank picks one from the clock)
//	override: vessel_id, state

func statusToProto(st model.RunStatus) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id":                structpb.NewStringValue(st.RunID),
		"state":                 structpb.NewStringValue(string(st.State)),
		"outcome":               structpb.NewStringValue(string(st.Outcome)),
		"configured":            structpb.NewBoolValue(st.Configured),
		"tick":                  structpb.NewNumberValue(float64(st.Tick)),
		"duration_ticks":        structpb.NewNumberValue(float64(st.DurationTicks)),
		"endless":               structpb.NewBoolValue(st.Endless),
		"seed":                  structpb.NewStringValue(strconv.FormatInt(st.Seed, 10)),
		"tick_interval_seconds": structpb.NewNumberValue(st.TickInterval.Seconds()),
		"live_vessels":          structpb.NewNumberValue(float64(st.LiveVessels)),
		"tick_label":            structpb.NewStringValue(st.TickLabel()),
	}}
}

func statusFromProto(s *structpb.Struct) (model.RunStatus, error) {
	f := s.GetFields()
	seed, _, err := parseSeed(f["seed"])
	if err != nil {
		return model.RunStatus{}, err
	}
	return model.RunStatus{
		RunID:         f["run_id"].GetStringValue(),
		State:         model.RunState(f["state"].GetStringValue()),
		Outcome:       model.Outcome(f["outcome"].GetStringValue()),
		Configured:    f["configured"].GetBoolValue(),
		Tick:          uint64(f["tick"].GetNumberValue()),
		DurationTicks: int(f["duration_ticks"].GetNumberValue()),
		Endless:       f["endless"].GetBoolValue(),
		Seed:          seed,
		TickInterval:  time.Duration(f["tick_interval_seconds"].GetNumberValue() * float64(time.Second)),
		LiveVessels:   int(f["live_vessels"].GetNumberValue()),
	}, nil
}

func pointToProto(p model.Point) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		"x": structpb.NewNumberValue(p.X),
		"y": structpb.NewNumberValue(p.Y),
	}})
}

func pointFromProto(v *structpb.Value) model.Point {
	f := v.GetStructValue().GetFields()
	return model.Point{X: f["x"].GetNumberValue(), Y: f["y"].GetNumberValue()}
}

func vesselToProto(v model.VesselSnapshot) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(v.ID),
		"kind":      structpb.NewStringValue(string(v.Kind)),
		"state":     structpb.NewStringValue(string(v.State)),
		"position":  pointToProto(v.Position),
		"heading":   pointToProto(v.Heading),
		"speed":     structpb.NewNumberValue(v.Speed),
		"waypoint":  structpb.NewNumberValue(float64(v.Waypoint)),
		"route_len": structpb.NewNumberValue(float64(v.RouteLen)),
	}}
}

func vesselFromProto(s *structpb.Struct) model.VesselSnapshot {
	f := s.GetFields()
	return model.VesselSnapshot{
		ID:       f["id"].GetStringValue(),
		Kind:     model.Kind(f["kind"].GetStringValue()),
		State:    model.VesselState(f["state"].GetStringValue()),
		Position: pointFromProto(f["position"]),
		Heading:  pointFromProto(f["heading"]),
		Speed:    f["speed"].GetNumberValue(),
		Waypoint: int(f["waypoint"].GetNumberValue()),
		RouteLen: int(f["route_len"].GetNumberValue()),
	}
}

func snapshotToProto(s model.RunSnapshot) *structpb.Struct {
	vessels := make([]*structpb.Value, 0, len(s.Vessels))
	for _, v := range s.Vessels {
		vessels = append(vessels, structpb.NewStructValue(vesselToProto(v)))
	}

	states := make([]string, 0, len(s.Summary.Departures))
	for st := range s.Summary.Departures {
		states = append(states, string(st))
	}
	sort.Strings(states)
	departures := make(map[string]*structpb.Value, len(states))
	for _, st := range states {
		departures[st] = structpb.NewNumberValue(float64(s.Summary.Departures[model.VesselState(st)]))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"status":  structpb.NewStructValue(statusToProto(s.Status)),
		"vessels": structpb.NewListValue(&structpb.ListValue{Values: vessels}),
		"summary": structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"spawned":    structpb.NewNumberValue(float64(s.Summary.Spawned)),
			"departures": structpb.NewStructValue(&structpb.Struct{Fields: departures}),
		}}),
	}}
}

func snapshotFromProto(s *structpb.Struct) (model.RunSnapshot, error) {
	f := s.GetFields()
	status, err := statusFromProto(f["status"].GetStructValue())
	if err != nil {
		return model.RunSnapshot{}, err
	}

	var vessels []model.VesselSnapshot
	for _, v := range f["vessels"].GetListValue().GetValues() {
		vessels = append(vessels, vesselFromProto(v.GetStructValue()))
	}

	summary := f["summary"].GetStructValue().GetFields()
	departures := make(map[model.VesselState]int)
	for st, n := range summary["departures"].GetStructValue().GetFields() {
		departures[model.VesselState(st)] = int(n.GetNumberValue())
	}

	return model.RunSnapshot{
		Status:  status,
		Vessels: vessels,
		Summary: model.Summary{
			Spawned:    int(summary["spawned"].GetNumberValue()),
			Departures: departures,
		},
	}, nil
}

func configToProto(cfg model.RunConfig) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"duration_ticks": structpb.NewNumberValue(float64(cfg.DurationTicks)),
	}
	if cfg.HasSeed {
		fields["seed"] = structpb.NewStringValue(strconv.FormatInt(cfg.Seed, 10))
	}
	return &structpb.Struct{Fields: fields}
}

func configFromProto(s *structpb.Struct) (model.RunConfig, error) {
	f := s.GetFields()
	dv, ok := f["duration_ticks"]
	if !ok {
		return model.RunConfig{}, fmt.Errorf("%w: duration_ticks is required", ErrInvalidRequest)
	}
	if _, isNum := dv.GetKind().(*structpb.Value_NumberValue); !isNum {
		return model.RunConfig{}, fmt.Errorf("%w: duration_ticks must be a number", ErrInvalidRequest)
	}
	d := dv.GetNumberValue()
	if d != math.Trunc(d) || math.Abs(d) > math.MaxInt32 {
		return model.RunConfig{}, fmt.Errorf("%w: duration_ticks must be an integer, got %v", ErrInvalidRequest, d)
	}

	cfg := model.RunConfig{DurationTicks: int(d)}
	seed, ok, err := parseSeed(f["seed"])
	if err != nil {
		return model.RunConfig{}, err
	}
	cfg.Seed, cfg.HasSeed = seed, ok
	return cfg, nil
}

// parseSeed reads an optional seed. Absent, null and blank values report
// ok=false so the run picks a seed from the clock.
func parseSeed(v *structpb.Value) (seed int64, ok bool, err error) {
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return 0, false, nil
	case *structpb.Value_StringValue:
		s := strings.TrimSpace(k.StringValue)
		if s == "" {
			return 0, false, nil
		}
		n, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			return 0, false, fmt.Errorf("%w: seed %q is not an integer", ErrInvalidRequest, k.StringValue)
		}
		return n, true, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false, fmt.Errorf("%w: numeric seed %v is not an exact integer; send it as a string", ErrInvalidRequest, n)
		}
		return int64(n), true, nil
	default:
		return 0, false, fmt.Errorf("%w: seed must be a string or number", ErrInvalidRequest)
	}
}
