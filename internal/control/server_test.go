package control

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/internal/sim/run"
	"github.com/signalsfoundry/maritime-simulator/model"
	"github.com/signalsfoundry/maritime-simulator/timectrl"
)

type controlTestEnv struct {
	ctrl   *run.Controller
	client *Client
}

func newControlTestEnv(t *testing.T, opts ...run.Option) *controlTestEnv {
	t.Helper()

	base := []run.Option{
		run.WithSeedSource(func() int64 { return 1760000000123456789 }),
		run.WithPacer(timectrl.NewManual()),
	}
	ctrl := run.New(nil, append(base, opts...)...)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RequestIDUnaryServerInterceptor(logging.Noop()),
		TracingUnaryServerInterceptor(),
	))
	RegisterRunControlServer(grpcServer, NewServer(ctrl, logging.Noop()))
	go func() { _ = grpcServer.Serve(lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		grpcServer.Stop()
		_, _ = ctrl.Reset(context.Background())
	})
	return &controlTestEnv{ctrl: ctrl, client: NewClient(conn)}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("status code = %v (%v), want %v", got, err, code)
	}
}

func TestCommitStepAndSnapshotOverGRPC(t *testing.T) {
	env := newControlTestEnv(t)
	ctx := testContext(t)

	st, err := env.client.Commit(ctx, model.RunConfig{DurationTicks: 3})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !st.Configured || st.State != model.RunSetup {
		t.Fatalf("commit status = %+v", st)
	}
	if st.Seed != 1760000000123456789 {
		t.Fatalf("seed = %d, lost precision on the wire", st.Seed)
	}

	for i := 0; i < 2; i++ {
		if st, err = env.client.Step(ctx); err != nil {
			t.Fatalf("Step %d: %v", i+1, err)
		}
	}
	if st.Tick != 2 || st.State != model.RunSetup {
		t.Fatalf("after two steps status = %+v", st)
	}

	snap, err := env.client.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Status.TickLabel() != "2 / 3" {
		t.Fatalf("tick label = %q", snap.Status.TickLabel())
	}
	if len(snap.Vessels) != 1 || snap.Vessels[0].ID != "Cargo-1" || snap.Summary.Spawned != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if want := env.ctrl.Snapshot().Vessels[0]; snap.Vessels[0] != want {
		t.Fatalf("wire vessel = %+v, want %+v", snap.Vessels[0], want)
	}
}

func TestCommandErrorsMapToStatusCodes(t *testing.T) {
	env := newControlTestEnv(t)
	ctx := testContext(t)

	_, err := env.client.Start(ctx)
	wantCode(t, err, codes.FailedPrecondition)

	_, err = env.client.Commit(ctx, model.RunConfig{DurationTicks: run.DefaultMaxDuration + 1})
	wantCode(t, err, codes.InvalidArgument)

	if _, err := env.client.Commit(ctx, model.RunConfig{DurationTicks: 10, Seed: 1, HasSeed: true}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := env.client.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}

	_, err = env.client.SetVesselState(ctx, "Pirate-9", model.StateSunk)
	wantCode(t, err, codes.NotFound)

	_, err = env.client.SetVesselState(ctx, "Cargo-1", "Levitating")
	wantCode(t, err, codes.InvalidArgument)

	_, err = env.client.SetTickInterval(ctx, 0)
	wantCode(t, err, codes.InvalidArgument)

	if _, err := env.client.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}
	_, err = env.client.Step(ctx)
	wantCode(t, err, codes.FailedPrecondition)
}

func TestSetVesselStateOverGRPC(t *testing.T) {
	env := newControlTestEnv(t)
	ctx := testContext(t)

	if _, err := env.client.Commit(ctx, model.RunConfig{DurationTicks: 0}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := env.client.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}

	v, err := env.client.SetVesselState(ctx, "Cargo-1", model.StateAttacked)
	if err != nil {
		t.Fatalf("SetVesselState: %v", err)
	}
	if v.ID != "Cargo-1" || v.State != model.StateAttacked {
		t.Fatalf("vessel = %+v", v)
	}
	snap, err := env.client.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if !snap.Status.Endless || snap.Status.TickLabel() != "1 (endless)" {
		t.Fatalf("status = %+v", snap.Status)
	}
}

func TestLifecycleOverGRPC(t *testing.T) {
	env := newControlTestEnv(t)
	ctx := testContext(t)

	if _, err := env.client.Commit(ctx, model.RunConfig{DurationTicks: 50, Seed: 9, HasSeed: true}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	st, err := env.client.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.State != model.RunRunning {
		t.Fatalf("state after Start = %s", st.State)
	}
	if st, err = env.client.Pause(ctx); err != nil || st.State != model.RunPaused {
		t.Fatalf("Pause = %+v, %v", st, err)
	}
	if st, err = env.client.SetTickInterval(ctx, 500*time.Millisecond); err != nil {
		t.Fatalf("SetTickInterval: %v", err)
	}
	if st.TickInterval != 500*time.Millisecond {
		t.Fatalf("interval = %v", st.TickInterval)
	}

	firstRun := st.RunID
	if st, err = env.client.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if st.State != model.RunRunning || st.Seed != 9 || st.RunID == firstRun {
		t.Fatalf("restart status = %+v", st)
	}

	if st, err = env.client.End(ctx); err != nil || st.Outcome != model.OutcomeEndedByRequest {
		t.Fatalf("End = %+v, %v", st, err)
	}
	if st, err = env.client.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if st.State != model.RunSetup || st.Configured || st.Tick != 0 {
		t.Fatalf("reset status = %+v", st)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newControlTestEnv(t)
	ctx := logging.ContextWithRequestID(testContext(t), "req-123")

	var header metadata.MD
	if _, err := env.client.GetSnapshot(ctx, grpc.Header(&header)); err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got := header.Get(requestIDMetadataKey); len(got) != 1 || got[0] != "req-123" {
		t.Fatalf("x-request-id header = %v, want [req-123]", got)
	}
}
