package live

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/delivery"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/notify"
	"github.com/matheus3301/relay/internal/presence"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
)

type harness struct {
	url      string
	registry *presence.Registry
	tokens   *notify.Tokens
	store    store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ids := identity.Default()
	reg := presence.NewRegistry()
	s := store.NewMemory()
	b := bus.New()
	logger := zap.NewNop()
	svc := chat.NewService(chat.Deps{
		IDs:        ids,
		Store:      s,
		Router:     delivery.NewRouter(ids, reg, b, logger),
		Aggregator: conversations.NewAggregator(ids, s, nil, conversations.Options{}, logger),
		Bus:        b,
		Logger:     logger,
	})
	tokens := notify.NewTokens()
	srv := httptest.NewServer(NewServer(svc, reg, tokens, Options{}, logger))
	t.Cleanup(srv.Close)
	return &harness{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		registry: reg,
		tokens:   tokens,
		store:    s,
	}
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func (h *harness) dial(t *testing.T) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, h.url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ws.CloseNow() })
	return &client{t: t, ws: ws}
}

func (c *client) send(event string, data any) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.ws, map[string]any{"event": event, "data": data}); err != nil {
		c.t.Fatal(err)
	}
}

func (c *client) expect(event string) json.RawMessage {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f frame
	if err := wsjson.Read(ctx, c.ws, &f); err != nil {
		c.t.Fatalf("waiting for %s: %v", event, err)
	}
	if f.Event != event {
		c.t.Fatalf("got event %s (%s), want %s", f.Event, f.Data, event)
	}
	return f.Data
}

func (c *client) identify(id any) {
	c.t.Helper()
	c.send(EventIdentify, map[string]any{"userId": id, "role": "user"})
	c.expect(EventIdentified)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestIdentifyRegistersAndDisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	c.send(EventIdentify, map[string]any{"userId": -1})
	data := c.expect(EventIdentified)
	if !strings.Contains(string(data), `"admin"`) {
		t.Errorf("identified payload = %s, want canonical admin", data)
	}
	if !h.registry.Online("admin") {
		t.Fatal("operator not registered after identify")
	}

	_ = c.ws.Close(websocket.StatusNormalClosure, "")
	waitFor(t, func() bool { return h.registry.Len() == 0 })
	if h.registry.Online("admin") {
		t.Error("identity still online after disconnect")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	h := newHarness(t)
	user := h.dial(t)
	user.identify("u1")
	op1, op2 := h.dial(t), h.dial(t)
	op1.identify("admin")
	op2.identify("-1")

	user.send(EventSendMessage, map[string]any{"receiverId": "admin", "content": "hello"})

	for _, op := range []*client{op1, op2} {
		var m store.Message
		if err := json.Unmarshal(op.expect(delivery.EventNewMessage), &m); err != nil {
			t.Fatal(err)
		}
		if m.SenderID != "u1" || m.Content != "hello" {
			t.Errorf("operator received %+v", m)
		}
	}
	user.expect(delivery.EventMessageSent)

	history, _ := h.store.GetByPeers(context.Background(), "u1", "admin")
	if len(history) != 1 {
		t.Errorf("history has %d messages, want 1", len(history))
	}
}

func TestSendFailureEmitsError(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	// Not identified and no senderId.
	c.send(EventSendMessage, map[string]any{"receiverId": "admin", "content": "x"})
	data := c.expect(EventError)
	if !strings.Contains(string(data), "senderId") {
		t.Errorf("error payload = %s", data)
	}
}

func TestMarkRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.store.Save(ctx, &store.Message{SenderID: "u1", ReceiverID: "admin", Content: "x"}); err != nil {
		t.Fatal(err)
	}

	op := h.dial(t)
	op.identify("admin")
	op.send(EventMarkRead, map[string]any{"receiverId": "-1", "senderId": "u1"})

	var res readResult
	if err := json.Unmarshal(op.expect(EventMessagesRead), &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ReceiverID != "admin" || res.SenderID != "u1" {
		t.Errorf("result = %+v", res)
	}
	if n, _ := h.store.CountUnread(ctx, "admin"); n != 0 {
		t.Errorf("unread = %d after mark_read, want 0", n)
	}
}

func TestRegisterPushToken(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)

	c.send(EventRegisterPushToken, map[string]any{"token": "tok"})
	c.expect(EventError)

	c.identify(42)
	c.send(EventRegisterPushToken, map[string]any{"token": "tok"})
	waitFor(t, func() bool { return len(h.tokens.Get("42")) == 1 })
}

func TestUnknownEvent(t *testing.T) {
	h := newHarness(t)
	c := h.dial(t)
	c.send("dance", nil)
	c.expect(EventError)
}

func TestEmitNeverBlocks(t *testing.T) {
	c := &Conn{out: make(chan outFrame, 1), closed: make(chan struct{})}
	ctx := context.Background()

	if err := c.Emit(ctx, "a", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Emit(ctx, "b", nil); err != ErrQueueFull {
		t.Errorf("Emit on full queue = %v, want ErrQueueFull", err)
	}
	close(c.closed)
	if err := c.Emit(ctx, "c", nil); err != ErrClosed {
		t.Errorf("Emit after close = %v, want ErrClosed", err)
	}
}
