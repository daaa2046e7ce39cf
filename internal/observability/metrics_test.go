package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/maritime-simulator/core"
	"github.com/signalsfoundry/maritime-simulator/model"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewControlCollector(reg)
	if err != nil {
		t.Fatalf("NewControlCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/maritime.control.v1.RunControl/Step"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		time.Sleep(2 * time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("RunControl", "Step", "OK")); got != 1 {
		t.Fatalf("control_requests_total = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "control_request_duration_seconds", map[string]string{
		"service": "RunControl",
		"method":  "Step",
	}); count != 1 {
		t.Fatalf("control_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewControlCollector(reg)
	if err != nil {
		t.Fatalf("NewControlCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/maritime.control.v1.RunControl/Start"}

	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.FailedPrecondition, "run has ended")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("RunControl", "Start", "FailedPrecondition")); got != 1 {
		t.Fatalf("control_requests_total error label = %v, want 1", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var cc *ControlCollector
	cc.SetStreamClients(3)
	cc.observeRPC("/maritime.control.v1.RunControl/Step", "OK", time.Millisecond)

	var m *Metrics
	if m.Handler() == nil {
		t.Fatalf("nil metrics returned nil handler")
	}

	var rc *RunCollector
	rc.ObserveTick(time.Millisecond, 1)
	rc.IncNavigation(core.StepMoved)
	rc.IncSpawned(model.KindCargo)
	rc.IncDeparture(model.StateExited)
	rc.IncRunOutcome(model.OutcomeCompleted)
	rc.SetRunState(model.RunRunning)
}

func TestRunCollectorRecordsTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	rc, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("NewRunCollector: %v", err)
	}

	rc.ObserveTick(3*time.Millisecond, 4)
	rc.ObserveTick(time.Millisecond, 2)
	rc.IncNavigation(core.StepSlidX)
	rc.IncSpawned(model.KindPirate)
	rc.IncDeparture(model.StateSunk)
	rc.IncRunOutcome(model.OutcomeEndedByRequest)
	rc.SetRunState(model.RunPaused)

	if got := testutil.ToFloat64(rc.TicksTotal); got != 2 {
		t.Fatalf("sim_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rc.LiveVessels); got != 2 {
		t.Fatalf("sim_live_vessels = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rc.NavigationStep.WithLabelValues("slid_x")); got != 1 {
		t.Fatalf("slid_x = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rc.NavigationStep.WithLabelValues("moved")); got != 0 {
		t.Fatalf("moved = %v, want 0", got)
	}
	if got := testutil.ToFloat64(rc.Departures.WithLabelValues("Sunk")); got != 1 {
		t.Fatalf("departures{Sunk} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rc.RunOutcomes.WithLabelValues("ENDED")); got != 1 {
		t.Fatalf("runs{ENDED} = %v, want 1", got)
	}
	if testutil.ToFloat64(rc.RunState.WithLabelValues("PAUSED")) != 1 || testutil.ToFloat64(rc.RunState.WithLabelValues("SETUP")) != 0 {
		t.Fatalf("run state gauge not switched to PAUSED")
	}
	if count := histogramSampleCount(t, reg, "sim_tick_duration_seconds", nil); count != 2 {
		t.Fatalf("sim_tick_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestCollectorsReuseExistingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("first NewRunCollector: %v", err)
	}
	second, err := NewRunCollector(reg)
	if err != nil {
		t.Fatalf("second NewRunCollector: %v", err)
	}
	second.ObserveTick(time.Millisecond, 1)
	if got := testutil.ToFloat64(first.TicksTotal); got != 1 {
		t.Fatalf("collectors do not share series: %v", got)
	}
}

func TestMetricsHandlerExposesRunAndControlMetrics(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.Run.ObserveTick(time.Millisecond, 7)
	m.Control.SetStreamClients(2)
	m.Control.observeRPC("/maritime.control.v1.RunControl/Commit", "OK", 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		`control_requests_total{code="OK",method="Commit",service="RunControl"} 1`,
		"control_request_duration_seconds",
		"snapshot_stream_clients 2",
		"sim_ticks_total 1",
		"sim_live_vessels 7",
		"sim_navigation_steps_total",
		"sim_run_state",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestRegisterRejectsIncompatibleCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: "sim_ticks_total", Help: "ticks"})); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sim_ticks_total", Help: "ticks"}, []string{"run"}))
	if err == nil {
		t.Fatalf("expected an error registering a vec over a plain counter")
	}
}

func TestSplitMethod(t *testing.T) {
	cases := []struct {
		in, service, method string
	}{
		{"", "unknown", "unknown"},
		{"/maritime.control.v1.RunControl/End", "RunControl", "End"},
		{"Svc/Method", "Svc", "Method"},
		{"noslash", "unknown", "unknown"},
		{"/Svc/", "Svc", "unknown"},
		{"/a.b.Svc/nested/Method", "Svc", "Method"},
	}
	for _, tc := range cases {
		s, m := SplitMethod(tc.in)
		if s != tc.service || m != tc.method {
			t.Fatalf("SplitMethod(%q) = %s/%s, want %s/%s", tc.in, s, m, tc.service, tc.method)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
