package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/relay/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn  *grpc.ClientConn
	relay *api.RelayClient
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, relay: api.NewRelayClient(conn)}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Status(ctx context.Context) (*api.GetStatusResponse, error) {
	return c.relay.GetStatus(ctx, &api.GetStatusRequest{})
}

func (c *Client) Conversations(ctx context.Context, operatorID string) (*api.ListConversationsResponse, error) {
	return c.relay.ListConversations(ctx, &api.ListConversationsRequest{OperatorID: operatorID})
}

// History returns the conversation between userID and peerID. An empty
// peerID means the operator.
func (c *Client) History(ctx context.Context, userID, peerID string) (*api.GetHistoryResponse, error) {
	return c.relay.GetHistory(ctx, &api.GetHistoryRequest{UserID: userID, PeerID: peerID})
}

func (c *Client) UnreadCount(ctx context.Context, receiverID, senderID string) (int, error) {
	out, err := c.relay.GetUnreadCount(ctx, &api.GetUnreadCountRequest{ReceiverID: receiverID, SenderID: senderID})
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) MarkRead(ctx context.Context, receiverID, senderID string) (bool, error) {
	out, err := c.relay.MarkRead(ctx, &api.MarkReadRequest{ReceiverID: receiverID, SenderID: senderID})
	if err != nil {
		return false, err
	}
	return out.Success, nil
}

func (c *Client) Send(ctx context.Context, req *api.SendMessageRequest) (*api.SendMessageResponse, error) {
	return c.relay.SendMessage(ctx, req)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.relay.DeleteMessage(ctx, &api.DeleteMessageRequest{ID: id})
	return err
}

// Watch streams message events until ctx is cancelled or the daemon goes
// away. The returned channel is closed when the stream ends.
func (c *Client) Watch(ctx context.Context) (<-chan *api.MessageEvent, error) {
	stream, err := c.relay.WatchMessages(ctx, &api.WatchMessagesRequest{})
	if err != nil {
		return nil, err
	}

	ch := make(chan *api.MessageEvent, 16)
	go func() {
		defer close(ch)
		for {
			evt, err := stream.Recv()
			if err != nil {
				return
			}
			select {
			case ch <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
