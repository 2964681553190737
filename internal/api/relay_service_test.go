package api_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/chat"
	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/delivery"
	"github.com/matheus3301/relay/internal/directory"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/presence"
	"github.com/matheus3301/relay/internal/status"
	"github.com/matheus3301/relay/internal/store"
	"github.com/matheus3301/relay/internal/tui/client"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type harness struct {
	client  *client.Client
	bus     *bus.Bus
	machine *status.Machine
}

func start(t *testing.T) *harness {
	t.Helper()
	// Short path keeps the socket under the 104-char limit on macOS.
	dir, err := os.MkdirTemp("/tmp", "relay-api-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	socket := filepath.Join(dir, "d.sock")

	logger := zap.NewNop()
	ids := identity.Default()
	s := store.NewMemory()
	reg := presence.NewRegistry()
	b := bus.New()
	machine := status.NewMachine(b)
	svc := chat.NewService(chat.Deps{
		IDs:        ids,
		Store:      s,
		Router:     delivery.NewRouter(ids, reg, b, logger),
		Aggregator: conversations.NewAggregator(ids, s, directory.NewStatic(directory.Profile{ID: "u1", Fullname: "Ana"}), conversations.Options{}, logger),
		Bus:        b,
		Logger:     logger,
	})

	srv := grpc.NewServer()
	api.Register(srv, api.NewRelayService(api.Deps{
		Instance: "test",
		Chat:     svc,
		Machine:  machine,
		Presence: reg,
		Backend:  store.Backend{Mode: store.ModeMemory},
		Bus:      b,
		Logger:   logger,
	}))
	lis, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := client.New(socket)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &harness{client: c, bus: b, machine: machine}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := grpcstatus.Code(err); got != code {
		t.Fatalf("code = %v (%v), want %v", got, err, code)
	}
}

func TestGetStatus(t *testing.T) {
	h := start(t)
	if err := h.machine.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}

	st, err := h.client.Status(ctx(t))
	if err != nil {
		t.Fatal(err)
	}
	if st.Instance != "test" || st.State != string(status.Ready) {
		t.Errorf("status = %+v", st)
	}
	if st.StoreMode != "memory" || st.OperatorID != identity.DefaultOperatorID {
		t.Errorf("status = %+v", st)
	}
}

func TestSendHistoryAndUnread(t *testing.T) {
	h := start(t)
	c := ctx(t)

	if _, err := h.client.Send(c, &api.SendMessageRequest{SenderID: "u1", ReceiverID: "-1", Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	sent, err := h.client.Send(c, &api.SendMessageRequest{ReceiverID: "u1", Content: "hi u1"})
	if err != nil {
		t.Fatal(err)
	}
	if sent.Message.SenderID != identity.DefaultOperatorID {
		t.Errorf("default sender = %q, want operator", sent.Message.SenderID)
	}

	hist, err := h.client.History(c, "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 2 || hist.Messages[0].Content != "hello" || hist.Messages[1].Content != "hi u1" {
		t.Fatalf("history = %+v", hist.Messages)
	}

	n, err := h.client.UnreadCount(c, "admin", "")
	if err != nil || n != 1 {
		t.Fatalf("UnreadCount = %d, %v, want 1", n, err)
	}
	n, err = h.client.UnreadCount(c, "u1", "admin")
	if err != nil || n != 1 {
		t.Fatalf("UnreadCount from admin = %d, %v, want 1", n, err)
	}

	ok, err := h.client.MarkRead(c, "admin", "u1")
	if err != nil || !ok {
		t.Fatalf("MarkRead = %v, %v", ok, err)
	}
	if n, _ := h.client.UnreadCount(c, "admin", ""); n != 0 {
		t.Errorf("UnreadCount after MarkRead = %d, want 0", n)
	}

	conv, err := h.client.Conversations(c, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(conv.Conversations) != 1 || conv.Conversations[0].Peer.Fullname != "Ana" {
		t.Errorf("conversations = %+v", conv.Conversations)
	}
}

func TestErrorsMapToCodes(t *testing.T) {
	h := start(t)
	c := ctx(t)

	_, err := h.client.Send(c, &api.SendMessageRequest{ReceiverID: "u1"})
	wantCode(t, err, codes.InvalidArgument)

	err = h.client.Delete(c, "missing")
	wantCode(t, err, codes.NotFound)

	_, err = h.client.MarkRead(c, "", "u1")
	wantCode(t, err, codes.InvalidArgument)
}

func TestDeleteMessage(t *testing.T) {
	h := start(t)
	c := ctx(t)

	sent, err := h.client.Send(c, &api.SendMessageRequest{SenderID: "u1", Content: "bye", ReceiverID: "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.client.Delete(c, sent.Message.ID); err != nil {
		t.Fatal(err)
	}
	hist, err := h.client.History(c, "u1", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist.Messages) != 0 {
		t.Errorf("deleted message still in history: %+v", hist.Messages)
	}
}

func TestWatchMessages(t *testing.T) {
	h := start(t)
	c := ctx(t)

	events, err := h.client.Watch(c)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.bus.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watch stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sent, err := h.client.Send(c, &api.SendMessageRequest{SenderID: "u1", ReceiverID: "admin", Content: "ping"})
	if err != nil {
		t.Fatal(err)
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				t.Fatal("stream closed")
			}
			if evt.Kind != bus.KindMessageSaved {
				continue
			}
			if evt.Message == nil || evt.Message.ID != sent.Message.ID {
				t.Fatalf("event = %+v, want message %s", evt, sent.Message.ID)
			}
			if evt.EventID == "" || evt.OccurredAtUnixMs == 0 {
				t.Errorf("envelope not stamped: %+v", evt)
			}
			return
		case <-c.Done():
			t.Fatal("no message.saved event")
		}
	}
}
