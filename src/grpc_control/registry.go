package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlServer is the server API of lodengine.Control
type ControlServer interface {
	SetVisibleRange(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetReplayCutoff(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSources(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Reset(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterControlServer attaches srv to a gRPC server
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&Control_ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

func unaryHandler[Req any](method string, call func(ControlServer, context.Context, *Req) (interface{}, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Control_ServiceDesc is the grpc.ServiceDesc for lodengine.Control
var Control_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SetVisibleRange",
			Handler: unaryHandler("SetVisibleRange", func(s ControlServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return s.SetVisibleRange(ctx, in)
			}),
		},
		{
			MethodName: "SetReplayCutoff",
			Handler: unaryHandler("SetReplayCutoff", func(s ControlServer, ctx context.Context, in *structpb.Struct) (interface{}, error) {
				return s.SetReplayCutoff(ctx, in)
			}),
		},
		{
			MethodName: "GetStats",
			Handler: unaryHandler("GetStats", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.GetStats(ctx, in)
			}),
		},
		{
			MethodName: "ListSources",
			Handler: unaryHandler("ListSources", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.ListSources(ctx, in)
			}),
		},
		{
			MethodName: "Reset",
			Handler: unaryHandler("Reset", func(s ControlServer, ctx context.Context, in *emptypb.Empty) (interface{}, error) {
				return s.Reset(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lodengine/control",
}
