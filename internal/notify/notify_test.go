package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/directory"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   TargetKind
	}{
		{"none", nil, KindByIdentity},
		{"blank only", []string{"", "  "}, KindByIdentity},
		{"one", []string{"t1"}, KindDirect},
		{"duplicates collapse", []string{"t1", "t1"}, KindDirect},
		{"many", []string{"t1", "t2"}, KindMulti},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.tokens, "u1")
			if got.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}

	if got := Resolve(nil, "u1"); got.Identity != "u1" {
		t.Errorf("ByIdentity target = %+v", got)
	}
	if got := Resolve([]string{" t1 "}, "u1"); got.Token != "t1" {
		t.Errorf("Direct token = %q, want trimmed t1", got.Token)
	}
}

func TestTokens(t *testing.T) {
	tk := NewTokens()
	tk.Add("u1", "a")
	tk.Add("u1", "b")
	tk.Add("u1", "a")

	if got := tk.Get("u1"); len(got) != 2 {
		t.Fatalf("Get(u1) = %v, want 2 tokens", got)
	}

	// A device that logs in as someone else moves its token.
	tk.Add("u2", "a")
	if got := tk.Get("u1"); len(got) != 1 || got[0] != "b" {
		t.Errorf("Get(u1) = %v, want [b]", got)
	}
	if got := tk.Get("u2"); len(got) != 1 || got[0] != "a" {
		t.Errorf("Get(u2) = %v, want [a]", got)
	}

	tk.Remove("b")
	if got := tk.Get("u1"); len(got) != 0 {
		t.Errorf("Get(u1) = %v after remove, want empty", got)
	}
	tk.Add("", "x")
	tk.Add("u3", "")
	if len(tk.Get("")) != 0 || len(tk.Get("u3")) != 0 {
		t.Error("empty id or token registered")
	}
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (m *mockNotifier) Publish(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) all() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.sent...)
}

func newDispatcher(dir directory.Directory, n Notifier) (*Dispatcher, *Tokens, *bus.Bus) {
	b := bus.New()
	tk := NewTokens()
	return NewDispatcher(identity.Default(), b, tk, dir, n, "", zap.NewNop()), tk, b
}

func TestNotifySkipsSelfMessages(t *testing.T) {
	n := &mockNotifier{}
	d, _, _ := newDispatcher(nil, n)

	if err := d.Notify(context.Background(), store.Message{ID: "m", SenderID: "-1", ReceiverID: "admin", Content: "x", MimeType: "text/plain"}); err != nil {
		t.Fatal(err)
	}
	if len(n.all()) != 0 {
		t.Errorf("notified self message: %v", n.all())
	}
}

func TestNotifyTargetResolution(t *testing.T) {
	dir := directory.NewStatic(directory.Profile{ID: "u2", PushTokens: []string{"p1", "p2"}})
	n := &mockNotifier{}
	d, tk, _ := newDispatcher(dir, n)
	tk.Add("u1", "live")

	for _, to := range []string{"u1", "u2", "u3"} {
		if err := d.Notify(context.Background(), store.Message{ID: to, SenderID: "admin", ReceiverID: to, Content: "hi", MimeType: "text/plain"}); err != nil {
			t.Fatal(err)
		}
	}

	sent := n.all()
	if len(sent) != 3 {
		t.Fatalf("sent %d notifications, want 3", len(sent))
	}
	if sent[0].Target.Kind != KindDirect || sent[0].Target.Token != "live" {
		t.Errorf("u1 target = %+v, want registry token", sent[0].Target)
	}
	if sent[1].Target.Kind != KindMulti || len(sent[1].Target.Tokens) != 2 {
		t.Errorf("u2 target = %+v, want directory tokens", sent[1].Target)
	}
	if sent[2].Target.Kind != KindByIdentity || sent[2].Target.Identity != "u3" {
		t.Errorf("u3 target = %+v, want by-identity", sent[2].Target)
	}
	if sent[0].Title != "New message" || sent[0].Body != "hi" {
		t.Errorf("notification = %+v", sent[0])
	}
}

func TestNotifyBody(t *testing.T) {
	if got := body(store.Message{Content: "/uploads/x.png", MimeType: "image/png"}); got != fileBody {
		t.Errorf("file body = %q", got)
	}
	long := strings.Repeat("я", 300)
	got := body(store.Message{Content: long, MimeType: "text/plain"})
	if n := len([]rune(got)); n != maxBodyRunes {
		t.Errorf("truncated body has %d runes, want %d", n, maxBodyRunes)
	}
}

func TestNotifyPropagatesPublishError(t *testing.T) {
	n := &mockNotifier{err: errors.New("gateway down")}
	d, _, _ := newDispatcher(nil, n)
	err := d.Notify(context.Background(), store.Message{ID: "m", SenderID: "u1", ReceiverID: "admin", MimeType: "text/plain"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestDispatcherConsumesBus(t *testing.T) {
	n := &mockNotifier{}
	d, _, b := newDispatcher(nil, n)
	d.Start(context.Background())
	defer d.Stop()

	b.Emit(bus.KindMessageSaved, store.Message{ID: "m1", SenderID: "u1", ReceiverID: "admin", Content: "hi", MimeType: "text/plain"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(n.all()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("dispatcher sent %d notifications, want 1", len(n.all()))
}

func TestNATSNotifierUnreachable(t *testing.T) {
	_, err := NewNATSNotifier(NATSOptions{URL: "nats://127.0.0.1:1", Subject: "push"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected connection error")
	}
}
