// Package control exposes the run controller over gRPC and provides a
// matching client.
package control

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/maritime-simulator/internal/logging"
	"github.com/signalsfoundry/maritime-simulator/model"
)

// RunController is the command surface served over gRPC. *run.Controller
// satisfies it.
type RunController interface {
	Commit(ctx context.Context, cfg model.RunConfig) (model.RunStatus, error)
	Start(ctx context.Context) (model.RunStatus, error)
	Pause(ctx context.Context) (model.RunStatus, error)
	Step(ctx context.Context) (model.RunStatus, error)
	End(ctx context.Context) (model.RunStatus, error)
	Reset(ctx context.Context) (model.RunStatus, error)
	Restart(ctx context.Context) (model.RunStatus, error)
	SetTickInterval(ctx context.Context, d time.Duration) (model.RunStatus, error)
	SetVesselState(ctx context.Context, id string, state model.VesselState) (model.VesselSnapshot, error)
	Snapshot() model.RunSnapshot
}

// Server implements RunControlServer on top of a RunController.
type Server struct {
	ctrl RunController
	log  logging.Logger
}

var _ RunControlServer = (*Server)(nil)

// NewServer wraps ctrl. A nil logger discards output.
func NewServer(ctrl RunController, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{ctrl: ctrl, log: log}
}

func (s *Server) status(ctx context.Context, op string, st model.RunStatus, err error) (*structpb.Struct, error) {
	if err != nil {
		logging.FromContext(ctx, s.log).Debug(ctx, "command failed",
			logging.String("op", op),
			logging.String("state", string(st.State)),
			logging.Err(err),
		)
		return nil, ToStatusError(err)
	}
	return statusToProto(st), nil
}

// Commit fixes duration and seed for the next run.
func (s *Server) Commit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg, err := configFromProto(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	st, err := s.ctrl.Commit(ctx, cfg)
	return s.status(ctx, "commit", st, err)
}

func (s *Server) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.ctrl.Start(ctx)
	return s.status(ctx, "start", st, err)
}

func (s *Server) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.ctrl.Pause(ctx)
	return s.status(ctx, "pause", st, err)
}

func (s *Server) Step(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.ctrl.Step(ctx)
	return s.status(ctx, "step", st, err)
}

func (s *Server) End(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.ctrl.End(ctx)
	return s.status(ctx, "end", st, err)
}

func (s *Server) Reset(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.ctrl.Reset(ctx)
	return s.status(ctx, "reset", st, err)
}

func (s *Server) Restart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.ctrl.Restart(ctx)
	return s.status(ctx, "restart", st, err)
}

// SetTickInterval takes the new real-time interval in seconds.
func (s *Server) SetTickInterval(ctx context.Context, req *wrapperspb.DoubleValue) (*structpb.Struct, error) {
	secs := req.GetValue()
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return nil, ToStatusError(fmt.Errorf("%w: interval must be finite", ErrInvalidRequest))
	}
	st, err := s.ctrl.SetTickInterval(ctx, time.Duration(secs*float64(time.Second)))
	return s.status(ctx, "set_tick_interval", st, err)
}

// SetVesselState forces a live vessel into a lifecycle state. The request
// carries vessel_id and state; the response is the updated vessel.
func (s *Server) SetVesselState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	id := f["vessel_id"].GetStringValue()
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: vessel_id is required", ErrInvalidRequest))
	}
	state, ok := model.ParseVesselState(f["state"].GetStringValue())
	if !ok {
		return nil, ToStatusError(fmt.Errorf("%w: unknown vessel state %q", ErrInvalidRequest, f["state"].GetStringValue()))
	}

	v, err := s.ctrl.SetVesselState(ctx, id, state)
	if err != nil {
		logging.FromContext(ctx, s.log).Debug(ctx, "vessel override failed",
			logging.String("vessel_id", id),
			logging.String("vessel_state", string(state)),
			logging.Err(err),
		)
		return nil, ToStatusError(err)
	}
	return vesselToProto(v), nil
}

func (s *Server) GetSnapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap := s.ctrl.Snapshot()
	_, span := StartChildSpan(ctx, "Control/EncodeSnapshot",
		attribute.String("run.id", snap.Status.RunID),
		attribute.Int("vessels", len(snap.Vessels)),
	)
	defer span.End()
	return snapshotToProto(snap), nil
}
