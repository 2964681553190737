package conversations

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/relay/internal/directory"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func seed(t *testing.T, msgs ...store.Message) *store.Memory {
	t.Helper()
	s := store.NewMemory()
	for _, m := range msgs {
		m := m
		if _, err := s.Save(context.Background(), &m); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func newAggregator(s store.Store, dir directory.Directory) *Aggregator {
	return NewAggregator(identity.Default(), s, dir, Options{Workers: 4, LookupTimeout: time.Second}, zap.NewNop())
}

func peerIDs(rows []Summary) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Peer.ID
	}
	return out
}

func wantPeers(t *testing.T, rows []Summary, want ...string) {
	t.Helper()
	got := peerIDs(rows)
	if len(got) != len(want) {
		t.Fatalf("peers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("peers = %v, want %v", got, want)
		}
	}
}

func TestBuildOrdersByLatestMessage(t *testing.T) {
	s := seed(t,
		store.Message{ID: "1", SenderID: "u1", ReceiverID: "admin", Content: "a", Timestamp: at(1)},
		store.Message{ID: "2", SenderID: "u2", ReceiverID: "admin", Content: "b", Timestamp: at(2)},
		store.Message{ID: "3", SenderID: "admin", ReceiverID: "u3", Content: "c", Timestamp: at(3)},
	)
	rows := newAggregator(s, directory.NewStatic()).Build(context.Background(), "")

	wantPeers(t, rows, "u3", "u2", "u1")
	if rows[0].LastMessage.ID != "3" {
		t.Errorf("u3 last message = %s, want 3", rows[0].LastMessage.ID)
	}
}

func TestBuildKeepsMostRecentPerPeer(t *testing.T) {
	s := seed(t,
		store.Message{ID: "old", SenderID: "u1", ReceiverID: "admin", Timestamp: at(1)},
		store.Message{ID: "new", SenderID: "admin", ReceiverID: "u1", Timestamp: at(9)},
		store.Message{ID: "mid", SenderID: "u1", ReceiverID: "admin", Timestamp: at(5)},
	)
	rows := newAggregator(s, nil).Build(context.Background(), "admin")

	wantPeers(t, rows, "u1")
	if rows[0].LastMessage.ID != "new" {
		t.Errorf("last message = %s, want new", rows[0].LastMessage.ID)
	}
}

func TestBuildTieGoesToLaterRow(t *testing.T) {
	s := seed(t,
		store.Message{ID: "first", SenderID: "u1", ReceiverID: "admin", Timestamp: at(5)},
		store.Message{ID: "second", SenderID: "admin", ReceiverID: "u1", Timestamp: at(5)},
	)
	rows := newAggregator(s, nil).Build(context.Background(), "")
	if rows[0].LastMessage.ID != "second" {
		t.Errorf("last message = %s, want second", rows[0].LastMessage.ID)
	}
}

func TestBuildCollapsesOperatorAliases(t *testing.T) {
	s := seed(t,
		store.Message{ID: "1", SenderID: "u1", ReceiverID: "-1", Timestamp: at(1)},
		store.Message{ID: "2", SenderID: "u1", ReceiverID: "admin", Timestamp: at(2)},
		store.Message{ID: "3", SenderID: "-1", ReceiverID: "u1", Timestamp: at(3)},
		store.Message{ID: "self", SenderID: "-1", ReceiverID: "admin", Timestamp: at(4)},
	)

	for _, op := range []string{"", "admin", "-1"} {
		rows := newAggregator(s, nil).Build(context.Background(), op)
		wantPeers(t, rows, "u1")
		if rows[0].LastMessage.ID != "3" {
			t.Errorf("operator %q: last message = %s, want 3", op, rows[0].LastMessage.ID)
		}
	}
}

func TestBuildEnrichesProfiles(t *testing.T) {
	s := seed(t, store.Message{ID: "1", SenderID: "u1", ReceiverID: "admin", Timestamp: at(1)})
	dir := directory.NewStatic(directory.Profile{ID: "u1", Fullname: "Ann", Phone: "+1", Avatar: "a.png", PushTokens: []string{"t"}})

	rows := newAggregator(s, dir).Build(context.Background(), "")
	want := Peer{ID: "u1", Fullname: "Ann", Phone: "+1", Avatar: "a.png"}
	if rows[0].Peer != want {
		t.Errorf("peer = %+v, want %+v", rows[0].Peer, want)
	}
}

// flakyDirectory fails for ids in fail and counts calls.
type flakyDirectory struct {
	fail  map[string]bool
	calls atomic.Int32
}

func (d *flakyDirectory) Lookup(_ context.Context, id string) (*directory.Profile, error) {
	d.calls.Add(1)
	if d.fail[id] {
		return nil, errors.New("lookup failed")
	}
	return &directory.Profile{ID: id, Fullname: "name-" + id}, nil
}

func TestBuildIsolatesLookupFailures(t *testing.T) {
	s := seed(t,
		store.Message{ID: "1", SenderID: "u1", ReceiverID: "admin", Timestamp: at(1)},
		store.Message{ID: "2", SenderID: "u2", ReceiverID: "admin", Timestamp: at(2)},
		store.Message{ID: "3", SenderID: "u3", ReceiverID: "admin", Timestamp: at(3)},
	)
	dir := &flakyDirectory{fail: map[string]bool{"u2": true}}

	rows := newAggregator(s, dir).Build(context.Background(), "")

	wantPeers(t, rows, "u3", "u2", "u1")
	if rows[1].Peer != (Peer{ID: "u2"}) {
		t.Errorf("failed peer = %+v, want id only", rows[1].Peer)
	}
	if rows[0].Peer.Fullname != "name-u3" || rows[2].Peer.Fullname != "name-u1" {
		t.Errorf("healthy peers not enriched: %+v, %+v", rows[0].Peer, rows[2].Peer)
	}
	if n := dir.calls.Load(); n != 3 {
		t.Errorf("lookups = %d, want 3", n)
	}
}

// blockingDirectory waits for the lookup context to end.
type blockingDirectory struct{}

func (blockingDirectory) Lookup(ctx context.Context, _ string) (*directory.Profile, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestBuildBoundsSlowLookups(t *testing.T) {
	s := seed(t, store.Message{ID: "1", SenderID: "u1", ReceiverID: "admin", Timestamp: at(1)})
	a := NewAggregator(identity.Default(), s, blockingDirectory{}, Options{LookupTimeout: 20 * time.Millisecond}, zap.NewNop())

	done := make(chan []Summary, 1)
	go func() { done <- a.Build(context.Background(), "") }()

	select {
	case rows := <-done:
		wantPeers(t, rows, "u1")
		if rows[0].Peer.Fullname != "" {
			t.Errorf("timed-out peer was enriched: %+v", rows[0].Peer)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Build did not return after lookup timeout")
	}
}

// brokenStore fails every read.
type brokenStore struct{ store.Store }

func (brokenStore) GetByParticipant(context.Context, string) ([]store.Message, error) {
	return nil, errors.New("disk on fire")
}

func TestBuildStoreFailureYieldsEmpty(t *testing.T) {
	rows := newAggregator(brokenStore{}, nil).Build(context.Background(), "")
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil", rows)
	}
}

func TestBuildNoMessages(t *testing.T) {
	rows := newAggregator(store.NewMemory(), directory.NewStatic()).Build(context.Background(), "")
	if len(rows) != 0 {
		t.Errorf("rows = %v, want empty", rows)
	}
}
