// Package rpc exposes the coach over gRPC. Messages are google.protobuf.Struct
// values so that clients need no generated stubs.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "callprep.v1.Coach"

const (
	chatMethod    = "/" + ServiceName + "/Chat"
	summaryMethod = "/" + ServiceName + "/Summary"
)

// CoachServer is the server API for the Coach service.
//
// Chat request fields: owner_id, session_id (optional), message.
// Summary request fields: owner_id, session_id (optional).
type CoachServer interface {
	Chat(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Summary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Coach service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoachServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Chat", Handler: unaryHandler(chatMethod, CoachServer.Chat)},
		{MethodName: "Summary", Handler: unaryHandler(summaryMethod, CoachServer.Summary)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "callprep/v1/coach.proto",
}

// RegisterCoachServer registers srv with s.
func RegisterCoachServer(s grpc.ServiceRegistrar, srv CoachServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(CoachServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoachServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CoachServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls the Coach service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Chat sends one message.
func (c *Client) Chat(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, chatMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Summary fetches the call plan.
func (c *Client) Summary(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, summaryMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
