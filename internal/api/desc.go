package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "relay.v1.Relay"

// Full method names, as used by clients.
const (
	MethodGetStatus         = "/" + ServiceName + "/GetStatus"
	MethodListConversations = "/" + ServiceName + "/ListConversations"
	MethodGetHistory        = "/" + ServiceName + "/GetHistory"
	MethodGetUnreadCount    = "/" + ServiceName + "/GetUnreadCount"
	MethodMarkRead          = "/" + ServiceName + "/MarkRead"
	MethodSendMessage       = "/" + ServiceName + "/SendMessage"
	MethodDeleteMessage     = "/" + ServiceName + "/DeleteMessage"
	MethodWatchMessages     = "/" + ServiceName + "/WatchMessages"
)

// RelayServer is the server API for the Relay service.
type RelayServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	GetUnreadCount(context.Context, *GetUnreadCountRequest) (*GetUnreadCountResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error)
	WatchMessages(*WatchMessagesRequest, MessageStream) error
}

// MessageStream is the server side of WatchMessages.
type MessageStream interface {
	Send(*MessageEvent) error
	Context() context.Context
}

type messageStream struct {
	grpc.ServerStream
}

func (s messageStream) Send(evt *MessageEvent) error {
	return s.ServerStream.SendMsg(toProto(evt))
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a RelayServer method to grpc. Requests are decoded from and
// responses encoded to their relay.v1 protobuf form.
func unary[Req, Resp any, PReq wirePtr[Req], PResp wirePtr[Resp]](method string, call func(RelayServer, context.Context, PReq) (PResp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			raw := emptyProto(in)
			if err := dec(raw); err != nil {
				return nil, err
			}
			in.decode(raw)

			handler := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(RelayServer), ctx, req.(PReq))
				if err != nil {
					return nil, err
				}
				if out == nil {
					out = PResp(new(Resp))
				}
				return toProto(out), nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchMessagesRequest)
	raw := emptyProto(in)
	if err := stream.RecvMsg(raw); err != nil {
		return err
	}
	in.decode(raw)
	return srv.(RelayServer).WatchMessages(in, messageStream{stream})
}

// ServiceDesc describes the Relay service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", RelayServer.GetStatus),
		unary("ListConversations", RelayServer.ListConversations),
		unary("GetHistory", RelayServer.GetHistory),
		unary("GetUnreadCount", RelayServer.GetUnreadCount),
		unary("MarkRead", RelayServer.MarkRead),
		unary("SendMessage", RelayServer.SendMessage),
		unary("DeleteMessage", RelayServer.DeleteMessage),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchMessages",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: ProtoFile,
}
