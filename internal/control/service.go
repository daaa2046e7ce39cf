package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "maritime.control.v1.RunControl"

// RunControlServer is the server API for the RunControl service. Messages
// are well-known protobuf types; field layouts are defined in convert.go.
type RunControlServer interface {
	Commit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Pause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Step(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	End(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Restart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetTickInterval(context.Context, *wrapperspb.DoubleValue) (*structpb.Struct, error)
	SetVesselState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterRunControlServer registers srv on s.
func RegisterRunControlServer(s grpc.ServiceRegistrar, srv RunControlServer) {
	s.RegisterService(&RunControlServiceDesc, srv)
}

// RunControlServiceDesc describes the RunControl service for grpc.Server.
var RunControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RunControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Commit", Handler: structHandler("Commit", RunControlServer.Commit)},
		{MethodName: "Start", Handler: emptyHandler("Start", RunControlServer.Start)},
		{MethodName: "Pause", Handler: emptyHandler("Pause", RunControlServer.Pause)},
		{MethodName: "Step", Handler: emptyHandler("Step", RunControlServer.Step)},
		{MethodName: "End", Handler: emptyHandler("End", RunControlServer.End)},
		{MethodName: "Reset", Handler: emptyHandler("Reset", RunControlServer.Reset)},
		{MethodName: "Restart", Handler: emptyHandler("Restart", RunControlServer.Restart)},
		{MethodName: "SetTickInterval", Handler: setTickIntervalHandler},
		{MethodName: "SetVesselState", Handler: structHandler("SetVesselState", RunControlServer.SetVesselState)},
		{MethodName: "GetSnapshot", Handler: emptyHandler("GetSnapshot", RunControlServer.GetSnapshot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "maritime/control/v1/run_control.proto",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

type methodHandler = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func emptyHandler(name string, call func(RunControlServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) methodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RunControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RunControlServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func structHandler(name string, call func(RunControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) methodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RunControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RunControlServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func setTickIntervalHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.DoubleValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunControlServer).SetTickInterval(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("SetTickInterval")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RunControlServer).SetTickInterval(ctx, req.(*wrapperspb.DoubleValue))
	}
	return interceptor(ctx, in, info, handler)
}
