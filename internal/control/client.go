package control

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/maritime-simulator/model"
)

// Client calls the RunControl service. Errors are gRPC status errors.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invokeStatus(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (model.RunStatus, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return model.RunStatus{}, err
	}
	return statusFromProto(out)
}

func (c *Client) Commit(ctx context.Context, cfg model.RunConfig, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "Commit", configToProto(cfg), opts...)
}

func (c *Client) Start(ctx context.Context, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "Start", &emptypb.Empty{}, opts...)
}

func (c *Client) Pause(ctx context.Context, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "Pause", &emptypb.Empty{}, opts...)
}

func (c *Client) Step(ctx context.Context, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "Step", &emptypb.Empty{}, opts...)
}

func (c *Client) End(ctx context.Context, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "End", &emptypb.Empty{}, opts...)
}

func (c *Client) Reset(ctx context.Context, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "Reset", &emptypb.Empty{}, opts...)
}

func (c *Client) Restart(ctx context.Context, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "Restart", &emptypb.Empty{}, opts...)
}

func (c *Client) SetTickInterval(ctx context.Context, d time.Duration, opts ...grpc.CallOption) (model.RunStatus, error) {
	return c.invokeStatus(ctx, "SetTickInterval", wrapperspb.Double(d.Seconds()), opts...)
}

func (c *Client) SetVesselState(ctx context.Context, id string, state model.VesselState, opts ...grpc.CallOption) (model.VesselSnapshot, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"vessel_id": structpb.NewStringValue(id),
		"state":     structpb.NewStringValue(string(state)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("SetVesselState"), in, out, opts...); err != nil {
		return model.VesselSnapshot{}, err
	}
	return vesselFromProto(out), nil
}

func (c *Client) GetSnapshot(ctx context.Context, opts ...grpc.CallOption) (model.RunSnapshot, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetSnapshot"), &emptypb.Empty{}, out, opts...); err != nil {
		return model.RunSnapshot{}, err
	}
	return snapshotFromProto(out)
}
