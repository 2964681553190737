package api

import (
	"context"

	"google.golang.org/grpc"
)

// RelayClient is the client API for the Relay service.
type RelayClient struct {
	cc grpc.ClientConnInterface
}

// NewRelayClient wraps a connection to a daemon serving Relay.
func NewRelayClient(cc grpc.ClientConnInterface) *RelayClient {
	return &RelayClient{cc: cc}
}

func invoke[Resp any, PResp wirePtr[Resp]](ctx context.Context, cc grpc.ClientConnInterface, method string, in Wire, opts ...grpc.CallOption) (PResp, error) {
	out := PResp(new(Resp))
	raw := emptyProto(out)
	if err := cc.Invoke(ctx, method, toProto(in), raw, opts...); err != nil {
		return nil, err
	}
	out.decode(raw)
	return out, nil
}

func (c *RelayClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, MethodGetStatus, in, opts...)
}

func (c *RelayClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, MethodListConversations, in, opts...)
}

func (c *RelayClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	return invoke[GetHistoryResponse](ctx, c.cc, MethodGetHistory, in, opts...)
}

func (c *RelayClient) GetUnreadCount(ctx context.Context, in *GetUnreadCountRequest, opts ...grpc.CallOption) (*GetUnreadCountResponse, error) {
	return invoke[GetUnreadCountResponse](ctx, c.cc, MethodGetUnreadCount, in, opts...)
}

func (c *RelayClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, MethodMarkRead, in, opts...)
}

func (c *RelayClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, MethodSendMessage, in, opts...)
}

func (c *RelayClient) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*DeleteMessageResponse, error) {
	return invoke[DeleteMessageResponse](ctx, c.cc, MethodDeleteMessage, in, opts...)
}

// WatchMessages opens the server stream of message events.
func (c *RelayClient) WatchMessages(ctx context.Context, in *WatchMessagesRequest, opts ...grpc.CallOption) (*WatchMessagesClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchMessages, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(toProto(in)); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchMessagesClient{stream}, nil
}

// WatchMessagesClient is the client side of WatchMessages.
type WatchMessagesClient struct {
	grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the server ends
// the stream.
func (x *WatchMessagesClient) Recv() (*MessageEvent, error) {
	evt := new(MessageEvent)
	raw := emptyProto(evt)
	if err := x.ClientStream.RecvMsg(raw); err != nil {
		return nil, err
	}
	evt.decode(raw)
	return evt, nil
}
