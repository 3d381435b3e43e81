package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "jewelchat.v1.ChatService"

// Full method names.
const (
	MethodGetStatus         = "/" + ServiceName + "/GetStatus"
	MethodSetCredentials    = "/" + ServiceName + "/SetCredentials"
	MethodListConversations = "/" + ServiceName + "/ListConversations"
	MethodOpenConversation  = "/" + ServiceName + "/OpenConversation"
	MethodGetConversation   = "/" + ServiceName + "/GetConversation"
	MethodSendText          = "/" + ServiceName + "/SendText"
	MethodResend            = "/" + ServiceName + "/Resend"
	MethodSearchMessages    = "/" + ServiceName + "/SearchMessages"
	MethodWatchEvents       = "/" + ServiceName + "/WatchEvents"
)

// ChatServer is the server API for the chat service. Requests and replies
// are protobuf well-known types; the field layout of each Struct is
// defined by the codec helpers in this package.
type ChatServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetCredentials(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ListConversations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConversation(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SendText(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Resend(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// ServiceDesc describes the chat service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", newEmpty, ChatServer.GetStatus),
		unary("SetCredentials", newStruct, ChatServer.SetCredentials),
		unary("ListConversations", newStruct, ChatServer.ListConversations),
		unary("OpenConversation", newStruct, ChatServer.OpenConversation),
		unary("GetConversation", newString, ChatServer.GetConversation),
		unary("SendText", newStruct, ChatServer.SendText),
		unary("Resend", newStruct, ChatServer.Resend),
		unary("SearchMessages", newStruct, ChatServer.SearchMessages),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "jewelchat/v1/chat.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newEmpty() *emptypb.Empty            { return new(emptypb.Empty) }
func newStruct() *structpb.Struct         { return new(structpb.Struct) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

func unary[Req, Res proto.Message](name string, newReq func() Req, call func(ChatServer, context.Context, Req) (Res, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChatServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServer).WatchEvents(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}
