package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMimeType is assigned to messages saved without one.
const DefaultMimeType = "text/plain"

// Message is one direct message between two identities.
type Message struct {
	Seq        int64     `json:"-"`
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	MimeType   string    `json:"mimeType"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Store persists messages. Both backends return identical results for the
// same sequence of calls: rows come back ascending by timestamp, with
// insertion order breaking ties.
type Store interface {
	// Save assigns defaults to m and stores it. m itself is not modified.
	Save(ctx context.Context, m *Message) (*Message, error)
	// GetByPeers returns the messages exchanged between a and b in either direction.
	GetByPeers(ctx context.Context, a, b string) ([]Message, error)
	// GetByParticipant returns every message id sent or received.
	GetByParticipant(ctx context.Context, id string) ([]Message, error)
	// MarkRead flags unread messages from sender to receiver as read.
	MarkRead(ctx context.Context, receiver, sender string) (bool, error)
	CountUnread(ctx context.Context, receiver string) (int, error)
	CountUnreadFrom(ctx context.Context, receiver, sender string) (int, error)
	// GetByID returns nil, nil when the message does not exist.
	GetByID(ctx context.Context, id string) (*Message, error)
	// Delete reports whether a message was removed.
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// prepare returns a copy of m with id, timestamp and MIME type defaulted.
func prepare(m *Message) (Message, error) {
	out := *m
	out.Seq = 0
	if out.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Message{}, fmt.Errorf("message id: %w", err)
		}
		out.ID = id.String()
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	out.Timestamp = out.Timestamp.UTC().Round(0)
	if out.MimeType == "" {
		out.MimeType = DefaultMimeType
	}
	return out, nil
}
