package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/notify"
	"github.com/matheus3301/relay/internal/presence"
	"go.uber.org/zap"
)

// Client event names.
const (
	EventIdentify          = "identify"
	EventIdentified        = "identified"
	EventSendMessage       = "send_message"
	EventMarkRead          = "mark_read"
	EventMessagesRead      = "messages_read"
	EventRegisterPushToken = "register_push_token"
	EventError             = "error"
)

// Options tunes the websocket endpoint.
type Options struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	ReadLimit      int64
	HandlerTimeout time.Duration
	OriginPatterns []string
}

// Server accepts websocket clients and routes their events to the chat
// service. Clients are unauthenticated; an identify event binds a connection
// to whatever identity it names.
type Server struct {
	chat     *chat.Service
	registry *presence.Registry
	tokens   *notify.Tokens
	opts     Options
	logger   *zap.Logger

	base     context.Context
	shutdown context.CancelFunc
}

// NewServer creates the live channel endpoint. tokens may be nil.
func NewServer(svc *chat.Service, registry *presence.Registry, tokens *notify.Tokens, opts Options, logger *zap.Logger) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 16 << 20
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 15 * time.Second
	}
	base, shutdown := context.WithCancel(context.Background())
	return &Server{
		chat:     svc,
		registry: registry,
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
		base:     base,
		shutdown: shutdown,
	}
}

type inFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     s.opts.OriginPatterns,
		InsecureSkipVerify: len(s.opts.OriginPatterns) == 0,
	})
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(s.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()

	c := newConn(ws, s.opts.SendBuffer, s.opts.WriteTimeout, s.logger)
	c.logger.Debug("client connected", zap.String("remote", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	s.readLoop(ctx, c)

	s.registry.Unregister(c)
	c.close(websocket.StatusNormalClosure, "")
	cancel()
	<-writerDone
	c.logger.Debug("client disconnected", zap.String("user", c.User()))
}

// Shutdown disconnects every client. Hijacked connections outlive
// http.Server.Shutdown, so the daemon registers this as an OnShutdown hook.
func (s *Server) Shutdown() {
	s.shutdown()
}

func (s *Server) readLoop(ctx context.Context, c *Conn) {
	for {
		var f inFrame
		if err := wsjson.Read(ctx, c.ws, &f); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		hctx, cancel := context.WithTimeout(ctx, s.opts.HandlerTimeout)
		if err := s.handle(hctx, c, f); err != nil {
			_ = c.Emit(hctx, EventError, errorPayload{Message: err.Error()})
		}
		cancel()
	}
}

func (s *Server) handle(ctx context.Context, c *Conn, f inFrame) error {
	switch f.Event {
	case EventIdentify:
		return s.identify(ctx, c, f.Data)
	case EventSendMessage:
		return s.sendMessage(ctx, c, f.Data)
	case EventMarkRead:
		return s.markRead(ctx, c, f.Data)
	case EventRegisterPushToken:
		return s.registerPushToken(c, f.Data)
	default:
		return fmt.Errorf("unknown event %q", f.Event)
	}
}

type identifyData struct {
	UserID identity.FlexID `json:"userId"`
	Role   string          `json:"role"`
}

func (s *Server) identify(ctx context.Context, c *Conn, raw json.RawMessage) error {
	var d identifyData
	if err := decode(raw, &d); err != nil {
		return err
	}
	id := s.chat.Canonical(string(d.UserID))
	if id == "" {
		return errors.New("userId is required")
	}
	s.registry.Register(id, c)
	c.setUser(id)
	c.logger.Info("client identified", zap.String("user", id), zap.String("role", d.Role))
	return c.Emit(ctx, EventIdentified, map[string]string{"userId": id})
}

type sendData struct {
	SenderID   identity.FlexID `json:"senderId"`
	ReceiverID identity.FlexID `json:"receiverId"`
	Content    string          `json:"content"`
	MimeType   string          `json:"mimeType"`
}

func (s *Server) sendMessage(ctx context.Context, c *Conn, raw json.RawMessage) error {
	var d sendData
	if err := decode(raw, &d); err != nil {
		return err
	}
	sender := string(d.SenderID)
	if sender == "" {
		sender = c.User()
	}
	_, err := s.chat.Send(ctx, chat.SendRequest{
		SenderID:   sender,
		ReceiverID: string(d.ReceiverID),
		Content:    d.Content,
		MimeType:   d.MimeType,
	})
	if err != nil {
		return errors.New(chat.Message(err))
	}
	return nil
}

type readData struct {
	ReceiverID identity.FlexID `json:"receiverId"`
	SenderID   identity.FlexID `json:"senderId"`
}

type readResult struct {
	ReceiverID string `json:"receiverId"`
	SenderID   string `json:"senderId"`
	Success    bool   `json:"success"`
}

func (s *Server) markRead(ctx context.Context, c *Conn, raw json.RawMessage) error {
	var d readData
	if err := decode(raw, &d); err != nil {
		return err
	}
	receiver := string(d.ReceiverID)
	if receiver == "" {
		receiver = c.User()
	}
	ok, err := s.chat.MarkRead(ctx, chat.ReadRequest{ReceiverID: receiver, SenderID: string(d.SenderID)})
	if err != nil {
		return errors.New(chat.Message(err))
	}
	return c.Emit(ctx, EventMessagesRead, readResult{
		ReceiverID: s.chat.Canonical(receiver),
		SenderID:   s.chat.Canonical(string(d.SenderID)),
		Success:    ok,
	})
}

type tokenData struct {
	Token string `json:"token"`
}

func (s *Server) registerPushToken(c *Conn, raw json.RawMessage) error {
	if s.tokens == nil {
		return errors.New("push notifications are disabled")
	}
	var d tokenData
	if err := decode(raw, &d); err != nil {
		return err
	}
	if c.User() == "" {
		return errors.New("identify before registering a push token")
	}
	if d.Token == "" {
		return errors.New("token is required")
	}
	s.tokens.Add(c.User(), d.Token)
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
