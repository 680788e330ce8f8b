package simulation

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "touristsafety.v1.SimulationService"

// Full method names.
const (
	FireMethod        = "/" + ServiceName + "/Fire"
	GetSnapshotMethod = "/" + ServiceName + "/GetSnapshot"
	WatchMethod       = "/" + ServiceName + "/Watch"
)

// SimulationServer is the server API of SimulationService.
type SimulationServer interface {
	// Fire offers a trigger to a scenario.
	Fire(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// GetSnapshot returns the view of one scenario.
	GetSnapshot(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	// Watch streams the events of one scenario, or of all when the name is empty.
	Watch(req *wrapperspb.StringValue, stream WatchStream) error
}

// WatchStream is the server side of a Watch call.
type WatchStream interface {
	Send(event *structpb.Struct) error
	Context() context.Context
}

// ServiceDesc describes SimulationService for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fire", Handler: fireHandler},
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "touristsafety/v1/simulation.proto",
}

// WatchStreamDesc describes the Watch stream for clients.
var WatchStreamDesc = grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}

// Register attaches srv to registrar.
func Register(registrar grpc.ServiceRegistrar, srv SimulationServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

//nolint:revive // Signature of grpc.MethodHandler.
func fireHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(SimulationServer).Fire(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FireMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationServer).Fire(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

//nolint:revive // Signature of grpc.MethodHandler.
func getSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(SimulationServer).GetSnapshot(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetSnapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationServer).GetSnapshot(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(SimulationServer).Watch(in, &watchStream{ServerStream: stream})
}

type watchStream struct {
	grpc.ServerStream
}

func (s *watchStream) Send(event *structpb.Struct) error {
	return s.SendMsg(event)
}
