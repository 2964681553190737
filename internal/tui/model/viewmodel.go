package model

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/store"
)

// Daemon is the subset of the control client the console uses.
type Daemon interface {
	Status(ctx context.Context) (*api.GetStatusResponse, error)
	Conversations(ctx context.Context, operatorID string) (*api.ListConversationsResponse, error)
	History(ctx context.Context, userID, peerID string) (*api.GetHistoryResponse, error)
	UnreadCount(ctx context.Context, receiverID, senderID string) (int, error)
	MarkRead(ctx context.Context, receiverID, senderID string) (bool, error)
	Send(ctx context.Context, req *api.SendMessageRequest) (*api.SendMessageResponse, error)
}

// Conversation is one inbox row with its unread count.
type Conversation struct {
	Summary conversations.Summary
	Unread  int
}

// ViewModel caches daemon state for the views.
type ViewModel struct {
	mu sync.RWMutex

	daemon        Daemon
	status        *api.GetStatusResponse
	conversations []Conversation
	messages      []store.Message
	activePeer    string
	Flash         Flash
}

// NewViewModel creates a view model backed by the daemon client.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{daemon: d}
}

// Operator returns the canonical operator id reported by the daemon.
func (vm *ViewModel) Operator() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.status == nil {
		return ""
	}
	return vm.status.OperatorID
}

// LoadStatus fetches the daemon status. On failure the cached status is
// cleared so the console shows the daemon as unreachable.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.Status(ctx)
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return err
}

// LoadConversations fetches the inbox and the unread count of every peer.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	resp, err := vm.daemon.Conversations(ctx, "")
	if err != nil {
		return err
	}
	operator := vm.Operator()
	rows := make([]Conversation, len(resp.Conversations))
	for i, s := range resp.Conversations {
		rows[i] = Conversation{Summary: s}
		if operator == "" {
			continue
		}
		if n, err := vm.daemon.UnreadCount(ctx, operator, s.Peer.ID); err == nil {
			rows[i].Unread = n
		}
	}
	vm.mu.Lock()
	vm.conversations = rows
	vm.mu.Unlock()
	return nil
}

// Open makes peer the active conversation, loads its history and marks the
// peer's messages as read.
func (vm *ViewModel) Open(ctx context.Context, peer string) error {
	vm.mu.Lock()
	vm.activePeer = peer
	vm.messages = nil
	vm.mu.Unlock()
	return vm.Refresh(ctx, true)
}

// Refresh reloads the active conversation.
func (vm *ViewModel) Refresh(ctx context.Context, markRead bool) error {
	peer := vm.ActivePeer()
	if peer == "" {
		return nil
	}
	resp, err := vm.daemon.History(ctx, peer, "")
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.activePeer == peer {
		vm.messages = resp.Messages
	}
	vm.mu.Unlock()

	if operator := vm.Operator(); markRead && operator != "" {
		if _, err := vm.daemon.MarkRead(ctx, operator, peer); err != nil {
			vm.Flash.Set("Mark read failed: "+err.Error(), 5*time.Second)
		}
	}
	return nil
}

// Close leaves the active conversation.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.activePeer = ""
	vm.messages = nil
	vm.mu.Unlock()
}

// Reply sends text from the operator to the active peer.
func (vm *ViewModel) Reply(ctx context.Context, text string) error {
	peer := vm.ActivePeer()
	if peer == "" {
		return nil
	}
	if _, err := vm.daemon.Send(ctx, &api.SendMessageRequest{ReceiverID: peer, Content: text}); err != nil {
		return err
	}
	vm.Flash.Set("Message sent", 3*time.Second)
	return nil
}

// Concerns reports whether evt touches the active conversation.
func (vm *ViewModel) Concerns(evt *api.MessageEvent) bool {
	peer := vm.ActivePeer()
	if peer == "" {
		return false
	}
	switch {
	case evt.Message != nil:
		return evt.Message.SenderID == peer || evt.Message.ReceiverID == peer
	case evt.Read != nil:
		return evt.Read.ReceiverID == peer || evt.Read.SenderID == peer
	}
	return false
}

// ActivePeer returns the peer of the open conversation, or "".
func (vm *ViewModel) ActivePeer() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activePeer
}

// PeerName returns the display name of a peer from the cached inbox.
func (vm *ViewModel) PeerName(id string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	for _, c := range vm.conversations {
		if c.Summary.Peer.ID == id && c.Summary.Peer.Fullname != "" {
			return c.Summary.Peer.Fullname
		}
	}
	return id
}

// Conversations returns a snapshot of the inbox.
func (vm *ViewModel) Conversations() []Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// Messages returns a snapshot of the open conversation.
func (vm *ViewModel) Messages() []store.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// Status returns the last fetched daemon status, nil if unreachable.
func (vm *ViewModel) Status() *api.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}
