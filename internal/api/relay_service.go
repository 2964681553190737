package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/status"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Presence reports live connection counts.
type Presence interface {
	Len() int
	Identities() int
}

// RelayService implements RelayServer on top of the chat service.
type RelayService struct {
	instance  string
	startedAt time.Time
	chat      *chat.Service
	machine   *status.Machine
	presence  Presence
	backend   store.Backend
	bus       *bus.Bus
	logger    *zap.Logger
}

// Deps collects what RelayService needs.
type Deps struct {
	Instance string
	Chat     *chat.Service
	Machine  *status.Machine
	Presence Presence
	Backend  store.Backend
	Bus      *bus.Bus
	Logger   *zap.Logger
}

// NewRelayService creates the daemon control service.
func NewRelayService(d Deps) *RelayService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{
		instance:  d.Instance,
		startedAt: time.Now(),
		chat:      d.Chat,
		machine:   d.Machine,
		presence:  d.Presence,
		backend:   d.Backend,
		bus:       d.Bus,
		logger:    logger,
	}
}

func (s *RelayService) GetStatus(ctx context.Context, _ *GetStatusRequest) (*GetStatusResponse, error) {
	resp := &GetStatusResponse{
		Instance:      s.instance,
		StoreMode:     string(s.backend.Mode),
		StoreFallback: s.backend.Fallback,
		OperatorID:    s.chat.Operator(),
		UptimeMs:      time.Since(s.startedAt).Milliseconds(),
	}
	if s.machine != nil {
		resp.State = string(s.machine.Current())
		resp.Reason = s.machine.Reason()
	}
	if s.presence != nil {
		resp.Connections = s.presence.Len()
		resp.Identities = s.presence.Identities()
	}
	if n, err := s.chat.UnreadCount(ctx, s.chat.Operator()); err == nil {
		resp.Unread = n
	}
	return resp, nil
}

func (s *RelayService) ListConversations(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	return &ListConversationsResponse{Conversations: s.chat.Conversations(ctx, req.OperatorID)}, nil
}

func (s *RelayService) GetHistory(ctx context.Context, req *GetHistoryRequest) (*GetHistoryResponse, error) {
	peer := req.PeerID
	if peer == "" {
		peer = s.chat.Operator()
	}
	msgs, err := s.chat.History(ctx, req.UserID, peer)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetHistoryResponse{Messages: msgs}, nil
}

func (s *RelayService) GetUnreadCount(ctx context.Context, req *GetUnreadCountRequest) (*GetUnreadCountResponse, error) {
	var (
		n   int
		err error
	)
	if req.SenderID != "" {
		n, err = s.chat.UnreadCountFrom(ctx, req.ReceiverID, req.SenderID)
	} else {
		n, err = s.chat.UnreadCount(ctx, req.ReceiverID)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetUnreadCountResponse{Count: n}, nil
}

func (s *RelayService) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	ok, err := s.chat.MarkRead(ctx, chat.ReadRequest{ReceiverID: req.ReceiverID, SenderID: req.SenderID})
	if err != nil {
		return nil, toStatus(err)
	}
	return &MarkReadResponse{Success: ok}, nil
}

// SendMessage sends on behalf of the operator unless SenderID is set.
func (s *RelayService) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	sender := req.SenderID
	if sender == "" {
		sender = s.chat.Operator()
	}
	m, err := s.chat.Send(ctx, chat.SendRequest{
		SenderID:   sender,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		MimeType:   req.MimeType,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SendMessageResponse{Message: *m}, nil
}

func (s *RelayService) DeleteMessage(ctx context.Context, req *DeleteMessageRequest) (*DeleteMessageResponse, error) {
	if err := s.chat.Delete(ctx, req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &DeleteMessageResponse{Success: true}, nil
}

func (s *RelayService) WatchMessages(_ *WatchMessagesRequest, stream MessageStream) error {
	if s.bus == nil {
		return grpcstatus.Errorf(codes.Unavailable, "event bus not initialized")
	}
	ch, unsub := s.bus.Subscribe("message.", 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if err := stream.Send(envelope(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func envelope(evt bus.Event) *MessageEvent {
	out := &MessageEvent{
		EventID:          uuid.New().String(),
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	switch p := evt.Payload.(type) {
	case store.Message:
		out.Message = &p
	case *store.Message:
		out.Message = p
	case bus.ReadReceipt:
		out.Read = &ReadEvent{ReceiverID: p.ReceiverID, SenderID: p.SenderID}
	case bus.Delivery:
		out.Delivery = &DeliveryEvent{
			MessageID:       p.MessageID,
			ReceiverHandles: p.ReceiverHandles,
			SenderHandles:   p.SenderHandles,
		}
	}
	return out
}

func toStatus(err error) error {
	var code codes.Code
	switch chat.Code(err) {
	case chat.CodeValidation:
		code = codes.InvalidArgument
	case chat.CodeNotFound:
		code = codes.NotFound
	case chat.CodeUnavailable:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return grpcstatus.Error(code, chat.Message(err))
}
