package api

import (
	"time"

	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/store"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Wire is implemented by every relay.v1 request, response and event type.
// Values travel as protobuf, built from the descriptors in File.
type Wire interface {
	descriptor() protoreflect.MessageDescriptor
	encode(protoreflect.Message)
	decode(protoreflect.Message)
}

// wirePtr lets generic code allocate a T and use it as a Wire.
type wirePtr[T any] interface {
	*T
	Wire
}

var (
	descGetStatusRequest          = descriptorFor("GetStatusRequest")
	descGetStatusResponse         = descriptorFor("GetStatusResponse")
	descListConversationsRequest  = descriptorFor("ListConversationsRequest")
	descListConversationsResponse = descriptorFor("ListConversationsResponse")
	descGetHistoryRequest         = descriptorFor("GetHistoryRequest")
	descGetHistoryResponse        = descriptorFor("GetHistoryResponse")
	descGetUnreadCountRequest     = descriptorFor("GetUnreadCountRequest")
	descGetUnreadCountResponse    = descriptorFor("GetUnreadCountResponse")
	descMarkReadRequest           = descriptorFor("MarkReadRequest")
	descMarkReadResponse          = descriptorFor("MarkReadResponse")
	descSendMessageRequest        = descriptorFor("SendMessageRequest")
	descSendMessageResponse       = descriptorFor("SendMessageResponse")
	descDeleteMessageRequest      = descriptorFor("DeleteMessageRequest")
	descDeleteMessageResponse     = descriptorFor("DeleteMessageResponse")
	descWatchMessagesRequest      = descriptorFor("WatchMessagesRequest")
	descMessageEvent              = descriptorFor("MessageEvent")
)

// toProto converts v into a dynamic protobuf message ready for the wire.
func toProto(v Wire) *dynamicpb.Message {
	m := dynamicpb.NewMessage(v.descriptor())
	v.encode(m)
	return m
}

// emptyProto allocates the wire form v will be decoded from.
func emptyProto(v Wire) *dynamicpb.Message {
	return dynamicpb.NewMessage(v.descriptor())
}

func encodeMessage(m protoreflect.Message, msg *store.Message) {
	setString(m, "id", msg.ID)
	setString(m, "sender_id", msg.SenderID)
	setString(m, "receiver_id", msg.ReceiverID)
	setString(m, "content", msg.Content)
	setString(m, "mime_type", msg.MimeType)
	if !msg.Timestamp.IsZero() {
		setInt64(m, "timestamp_unix_nano", msg.Timestamp.UnixNano())
	}
	setBool(m, "read", msg.Read)
}

func decodeMessage(m protoreflect.Message) store.Message {
	out := store.Message{
		ID:         getString(m, "id"),
		SenderID:   getString(m, "sender_id"),
		ReceiverID: getString(m, "receiver_id"),
		Content:    getString(m, "content"),
		MimeType:   getString(m, "mime_type"),
		Read:       getBool(m, "read"),
	}
	if ns := getInt64(m, "timestamp_unix_nano"); ns != 0 {
		out.Timestamp = time.Unix(0, ns).UTC()
	}
	return out
}

func encodeSummary(m protoreflect.Message, s *conversations.Summary) {
	setMessage(m, "peer", func(p protoreflect.Message) {
		setString(p, "id", s.Peer.ID)
		setString(p, "fullname", s.Peer.Fullname)
		setString(p, "phone", s.Peer.Phone)
		setString(p, "avatar", s.Peer.Avatar)
	})
	setMessage(m, "last_message", func(lm protoreflect.Message) {
		encodeMessage(lm, &s.LastMessage)
	})
}

func decodeSummary(m protoreflect.Message) conversations.Summary {
	var s conversations.Summary
	if p, ok := getMessage(m, "peer"); ok {
		s.Peer = conversations.Peer{
			ID:       getString(p, "id"),
			Fullname: getString(p, "fullname"),
			Phone:    getString(p, "phone"),
			Avatar:   getString(p, "avatar"),
		}
	}
	if lm, ok := getMessage(m, "last_message"); ok {
		s.LastMessage = decodeMessage(lm)
	}
	return s
}

func (*GetStatusRequest) descriptor() protoreflect.MessageDescriptor { return descGetStatusRequest }
func (*GetStatusRequest) encode(protoreflect.Message)                {}
func (*GetStatusRequest) decode(protoreflect.Message)                {}

func (*GetStatusResponse) descriptor() protoreflect.MessageDescriptor { return descGetStatusResponse }

func (r *GetStatusResponse) encode(m protoreflect.Message) {
	setString(m, "instance", r.Instance)
	setString(m, "state", r.State)
	setString(m, "reason", r.Reason)
	setString(m, "store_mode", r.StoreMode)
	setBool(m, "store_fallback", r.StoreFallback)
	setString(m, "operator_id", r.OperatorID)
	setInt64(m, "uptime_ms", r.UptimeMs)
	setInt32(m, "connections", r.Connections)
	setInt32(m, "identities", r.Identities)
	setInt32(m, "unread", r.Unread)
}

func (r *GetStatusResponse) decode(m protoreflect.Message) {
	*r = GetStatusResponse{
		Instance:      getString(m, "instance"),
		State:         getString(m, "state"),
		Reason:        getString(m, "reason"),
		StoreMode:     getString(m, "store_mode"),
		StoreFallback: getBool(m, "store_fallback"),
		OperatorID:    getString(m, "operator_id"),
		UptimeMs:      getInt64(m, "uptime_ms"),
		Connections:   getInt32(m, "connections"),
		Identities:    getInt32(m, "identities"),
		Unread:        getInt32(m, "unread"),
	}
}

func (*ListConversationsRequest) descriptor() protoreflect.MessageDescriptor {
	return descListConversationsRequest
}

func (r *ListConversationsRequest) encode(m protoreflect.Message) {
	setString(m, "operator_id", r.OperatorID)
}

func (r *ListConversationsRequest) decode(m protoreflect.Message) {
	r.OperatorID = getString(m, "operator_id")
}

func (*ListConversationsResponse) descriptor() protoreflect.MessageDescriptor {
	return descListConversationsResponse
}

func (r *ListConversationsResponse) encode(m protoreflect.Message) {
	for i := range r.Conversations {
		appendMessage(m, "conversations", func(e protoreflect.Message) {
			encodeSummary(e, &r.Conversations[i])
		})
	}
}

func (r *ListConversationsResponse) decode(m protoreflect.Message) {
	r.Conversations = []conversations.Summary{}
	eachMessage(m, "conversations", func(e protoreflect.Message) {
		r.Conversations = append(r.Conversations, decodeSummary(e))
	})
}

func (*GetHistoryRequest) descriptor() protoreflect.MessageDescriptor { return descGetHistoryRequest }

func (r *GetHistoryRequest) encode(m protoreflect.Message) {
	setString(m, "user_id", r.UserID)
	setString(m, "peer_id", r.PeerID)
}

func (r *GetHistoryRequest) decode(m protoreflect.Message) {
	r.UserID = getString(m, "user_id")
	r.PeerID = getString(m, "peer_id")
}

func (*GetHistoryResponse) descriptor() protoreflect.MessageDescriptor { return descGetHistoryResponse }

func (r *GetHistoryResponse) encode(m protoreflect.Message) {
	for i := range r.Messages {
		appendMessage(m, "messages", func(e protoreflect.Message) {
			encodeMessage(e, &r.Messages[i])
		})
	}
}

func (r *GetHistoryResponse) decode(m protoreflect.Message) {
	r.Messages = []store.Message{}
	eachMessage(m, "messages", func(e protoreflect.Message) {
		r.Messages = append(r.Messages, decodeMessage(e))
	})
}

func (*GetUnreadCountRequest) descriptor() protoreflect.MessageDescriptor {
	return descGetUnreadCountRequest
}

func (r *GetUnreadCountRequest) encode(m protoreflect.Message) {
	setString(m, "receiver_id", r.ReceiverID)
	setString(m, "sender_id", r.SenderID)
}

func (r *GetUnreadCountRequest) decode(m protoreflect.Message) {
	r.ReceiverID = getString(m, "receiver_id")
	r.SenderID = getString(m, "sender_id")
}

func (*GetUnreadCountResponse) descriptor() protoreflect.MessageDescriptor {
	return descGetUnreadCountResponse
}

func (r *GetUnreadCountResponse) encode(m protoreflect.Message) { setInt32(m, "count", r.Count) }
func (r *GetUnreadCountResponse) decode(m protoreflect.Message) { r.Count = getInt32(m, "count") }

func (*MarkReadRequest) descriptor() protoreflect.MessageDescriptor { return descMarkReadRequest }

func (r *MarkReadRequest) encode(m protoreflect.Message) {
	setString(m, "receiver_id", r.ReceiverID)
	setString(m, "sender_id", r.SenderID)
}

func (r *MarkReadRequest) decode(m protoreflect.Message) {
	r.ReceiverID = getString(m, "receiver_id")
	r.SenderID = getString(m, "sender_id")
}

func (*MarkReadResponse) descriptor() protoreflect.MessageDescriptor { return descMarkReadResponse }
func (r *MarkReadResponse) encode(m protoreflect.Message)            { setBool(m, "success", r.Success) }
func (r *MarkReadResponse) decode(m protoreflect.Message)            { r.Success = getBool(m, "success") }

func (*SendMessageRequest) descriptor() protoreflect.MessageDescriptor {
	return descSendMessageRequest
}

func (r *SendMessageRequest) encode(m protoreflect.Message) {
	setString(m, "sender_id", r.SenderID)
	setString(m, "receiver_id", r.ReceiverID)
	setString(m, "content", r.Content)
	setString(m, "mime_type", r.MimeType)
}

func (r *SendMessageRequest) decode(m protoreflect.Message) {
	*r = SendMessageRequest{
		SenderID:   getString(m, "sender_id"),
		ReceiverID: getString(m, "receiver_id"),
		Content:    getString(m, "content"),
		MimeType:   getString(m, "mime_type"),
	}
}

func (*SendMessageResponse) descriptor() protoreflect.MessageDescriptor {
	return descSendMessageResponse
}

func (r *SendMessageResponse) encode(m protoreflect.Message) {
	setMessage(m, "message", func(e protoreflect.Message) { encodeMessage(e, &r.Message) })
}

func (r *SendMessageResponse) decode(m protoreflect.Message) {
	if e, ok := getMessage(m, "message"); ok {
		r.Message = decodeMessage(e)
	}
}

func (*DeleteMessageRequest) descriptor() protoreflect.MessageDescriptor {
	return descDeleteMessageRequest
}

func (r *DeleteMessageRequest) encode(m protoreflect.Message) { setString(m, "id", r.ID) }
func (r *DeleteMessageRequest) decode(m protoreflect.Message) { r.ID = getString(m, "id") }

func (*DeleteMessageResponse) descriptor() protoreflect.MessageDescriptor {
	return descDeleteMessageResponse
}

func (r *DeleteMessageResponse) encode(m protoreflect.Message) { setBool(m, "success", r.Success) }
func (r *DeleteMessageResponse) decode(m protoreflect.Message) { r.Success = getBool(m, "success") }

func (*WatchMessagesRequest) descriptor() protoreflect.MessageDescriptor {
	return descWatchMessagesRequest
}
func (*WatchMessagesRequest) encode(protoreflect.Message) {}
func (*WatchMessagesRequest) decode(protoreflect.Message) {}

func (*MessageEvent) descriptor() protoreflect.MessageDescriptor { return descMessageEvent }

func (e *MessageEvent) encode(m protoreflect.Message) {
	setString(m, "event_id", e.EventID)
	setString(m, "kind", e.Kind)
	setInt64(m, "occurred_at_unix_ms", e.OccurredAtUnixMs)
	if e.Message != nil {
		setMessage(m, "message", func(sub protoreflect.Message) { encodeMessage(sub, e.Message) })
	}
	if e.Read != nil {
		setMessage(m, "read", func(sub protoreflect.Message) {
			setString(sub, "receiver_id", e.Read.ReceiverID)
			setString(sub, "sender_id", e.Read.SenderID)
		})
	}
	if e.Delivery != nil {
		setMessage(m, "delivery", func(sub protoreflect.Message) {
			setString(sub, "message_id", e.Delivery.MessageID)
			setInt32(sub, "receiver_handles", e.Delivery.ReceiverHandles)
			setInt32(sub, "sender_handles", e.Delivery.SenderHandles)
		})
	}
}

func (e *MessageEvent) decode(m protoreflect.Message) {
	*e = MessageEvent{
		EventID:          getString(m, "event_id"),
		Kind:             getString(m, "kind"),
		OccurredAtUnixMs: getInt64(m, "occurred_at_unix_ms"),
	}
	if sub, ok := getMessage(m, "message"); ok {
		msg := decodeMessage(sub)
		e.Message = &msg
	}
	if sub, ok := getMessage(m, "read"); ok {
		e.Read = &ReadEvent{
			ReceiverID: getString(sub, "receiver_id"),
			SenderID:   getString(sub, "sender_id"),
		}
	}
	if sub, ok := getMessage(m, "delivery"); ok {
		e.Delivery = &DeliveryEvent{
			MessageID:       getString(sub, "message_id"),
			ReceiverHandles: getInt32(sub, "receiver_handles"),
			SenderHandles:   getInt32(sub, "sender_handles"),
		}
	}
}
