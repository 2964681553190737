package api

import (
	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/store"
)

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Instance      string `json:"instance"`
	State         string `json:"state"`
	Reason        string `json:"reason,omitempty"`
	StoreMode     string `json:"storeMode"`
	StoreFallback bool   `json:"storeFallback"`
	OperatorID    string `json:"operatorId"`
	UptimeMs      int64  `json:"uptimeMs"`
	Connections   int    `json:"connections"`
	Identities    int    `json:"identities"`
	Unread        int    `json:"unread"`
}

type ListConversationsRequest struct {
	OperatorID string `json:"operatorId,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []conversations.Summary `json:"conversations"`
}

type GetHistoryRequest struct {
	UserID string `json:"userId"`
	PeerID string `json:"peerId"`
}

type GetHistoryResponse struct {
	Messages []store.Message `json:"messages"`
}

// GetUnreadCountRequest counts every unread message for ReceiverID, or only
// those from SenderID when it is set.
type GetUnreadCountRequest struct {
	ReceiverID string `json:"receiverId"`
	SenderID   string `json:"senderId,omitempty"`
}

type GetUnreadCountResponse struct {
	Count int `json:"count"`
}

type MarkReadRequest struct {
	ReceiverID string `json:"receiverId"`
	SenderID   string `json:"senderId"`
}

type MarkReadResponse struct {
	Success bool `json:"success"`
}

type SendMessageRequest struct {
	SenderID   string `json:"senderId,omitempty"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	MimeType   string `json:"mimeType,omitempty"`
}

type SendMessageResponse struct {
	Message store.Message `json:"message"`
}

type DeleteMessageRequest struct {
	ID string `json:"id"`
}

type DeleteMessageResponse struct {
	Success bool `json:"success"`
}

type WatchMessagesRequest struct{}

// MessageEvent is one bus event relayed to a watcher. At most one of
// Message, Read and Delivery is set, depending on Kind.
type MessageEvent struct {
	EventID          string         `json:"eventId"`
	Kind             string         `json:"kind"`
	OccurredAtUnixMs int64          `json:"occurredAtUnixMs"`
	Message          *store.Message `json:"message,omitempty"`
	Read             *ReadEvent     `json:"read,omitempty"`
	Delivery         *DeliveryEvent `json:"delivery,omitempty"`
}

type ReadEvent struct {
	ReceiverID string `json:"receiverId"`
	SenderID   string `json:"senderId"`
}

type DeliveryEvent struct {
	MessageID       string `json:"messageId"`
	ReceiverHandles int    `json:"receiverHandles"`
	SenderHandles   int    `json:"senderHandles"`
}
