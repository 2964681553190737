package bus

import "time"

// Event kinds published by the relay.
const (
	KindMessageSaved     = "message.saved"
	KindMessageDelivered = "message.delivered"
	KindMessageRead      = "message.read"
	KindMessageDeleted   = "message.deleted"
	KindStatusChanged    = "daemon.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ReadReceipt is the payload of KindMessageRead.
type ReadReceipt struct {
	ReceiverID string
	SenderID   string
}

// Delivery is the payload of KindMessageDelivered.
type Delivery struct {
	MessageID       string
	ReceiverID      string
	SenderID        string
	ReceiverHandles int
	SenderHandles   int
}
