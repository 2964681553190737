package api

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ProtoFile is the path the relay.v1 descriptor is registered under.
const ProtoFile = "relay/v1/relay.proto"

const protoPackage = "relay.v1"

// File is the relay.v1 schema. It is registered in protoregistry.GlobalFiles
// so reflection-based tooling can resolve it.
var File = buildFile()

func str(name string, num int32) *descriptorpb.FieldDescriptorProto {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_STRING)
}

func scalar(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func msg(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String("." + protoPackage + "." + typeName)
	return f
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func rpc(name, in, out string, serverStreaming bool) *descriptorpb.MethodDescriptorProto {
	m := &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String("." + protoPackage + "." + in),
		OutputType: proto.String("." + protoPackage + "." + out),
	}
	if serverStreaming {
		m.ServerStreaming = proto.Bool(true)
	}
	return m
}

func buildFile() protoreflect.FileDescriptor {
	const (
		i32 = descriptorpb.FieldDescriptorProto_TYPE_INT32
		i64 = descriptorpb.FieldDescriptorProto_TYPE_INT64
		b   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	)
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(ProtoFile),
		Package: proto.String(protoPackage),
		Syntax:  proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/matheus3301/relay/internal/api"),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Message",
				str("id", 1), str("sender_id", 2), str("receiver_id", 3), str("content", 4),
				str("mime_type", 5), scalar("timestamp_unix_nano", 6, i64), scalar("read", 7, b)),
			message("Peer", str("id", 1), str("fullname", 2), str("phone", 3), str("avatar", 4)),
			message("ConversationSummary", msg("peer", 1, "Peer"), msg("last_message", 2, "Message")),

			message("GetStatusRequest"),
			message("GetStatusResponse",
				str("instance", 1), str("state", 2), str("reason", 3), str("store_mode", 4),
				scalar("store_fallback", 5, b), str("operator_id", 6), scalar("uptime_ms", 7, i64),
				scalar("connections", 8, i32), scalar("identities", 9, i32), scalar("unread", 10, i32)),
			message("ListConversationsRequest", str("operator_id", 1)),
			message("ListConversationsResponse", repeated(msg("conversations", 1, "ConversationSummary"))),
			message("GetHistoryRequest", str("user_id", 1), str("peer_id", 2)),
			message("GetHistoryResponse", repeated(msg("messages", 1, "Message"))),
			message("GetUnreadCountRequest", str("receiver_id", 1), str("sender_id", 2)),
			message("GetUnreadCountResponse", scalar("count", 1, i32)),
			message("MarkReadRequest", str("receiver_id", 1), str("sender_id", 2)),
			message("MarkReadResponse", scalar("success", 1, b)),
			message("SendMessageRequest", str("sender_id", 1), str("receiver_id", 2), str("content", 3), str("mime_type", 4)),
			message("SendMessageResponse", msg("message", 1, "Message")),
			message("DeleteMessageRequest", str("id", 1)),
			message("DeleteMessageResponse", scalar("success", 1, b)),
			message("WatchMessagesRequest"),
			message("ReadEvent", str("receiver_id", 1), str("sender_id", 2)),
			message("DeliveryEvent", str("message_id", 1), scalar("receiver_handles", 2, i32), scalar("sender_handles", 3, i32)),
			message("MessageEvent",
				str("event_id", 1), str("kind", 2), scalar("occurred_at_unix_ms", 3, i64),
				msg("message", 4, "Message"), msg("read", 5, "ReadEvent"), msg("delivery", 6, "DeliveryEvent")),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Relay"),
			Method: []*descriptorpb.MethodDescriptorProto{
				rpc("GetStatus", "GetStatusRequest", "GetStatusResponse", false),
				rpc("ListConversations", "ListConversationsRequest", "ListConversationsResponse", false),
				rpc("GetHistory", "GetHistoryRequest", "GetHistoryResponse", false),
				rpc("GetUnreadCount", "GetUnreadCountRequest", "GetUnreadCountResponse", false),
				rpc("MarkRead", "MarkReadRequest", "MarkReadResponse", false),
				rpc("SendMessage", "SendMessageRequest", "SendMessageResponse", false),
				rpc("DeleteMessage", "DeleteMessageRequest", "DeleteMessageResponse", false),
				rpc("WatchMessages", "WatchMessagesRequest", "MessageEvent", true),
			},
		}},
	}

	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("relay.v1 descriptor: %v", err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("register relay.v1 descriptor: %v", err))
	}
	return fd
}

// descriptorFor returns the relay.v1 message descriptor with the given short name.
func descriptorFor(name protoreflect.Name) protoreflect.MessageDescriptor {
	md := File.Messages().ByName(name)
	if md == nil {
		panic("relay.v1: no message " + string(name))
	}
	return md
}

func field(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("%s: no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

// Zero scalars are left unset; proto3 reads them back as zero.

func setString(m protoreflect.Message, name protoreflect.Name, v string) {
	if v != "" {
		m.Set(field(m, name), protoreflect.ValueOfString(v))
	}
}

func setInt64(m protoreflect.Message, name protoreflect.Name, v int64) {
	if v != 0 {
		m.Set(field(m, name), protoreflect.ValueOfInt64(v))
	}
}

func setInt32(m protoreflect.Message, name protoreflect.Name, v int) {
	if v != 0 {
		m.Set(field(m, name), protoreflect.ValueOfInt32(int32(v)))
	}
}

func setBool(m protoreflect.Message, name protoreflect.Name, v bool) {
	if v {
		m.Set(field(m, name), protoreflect.ValueOfBool(v))
	}
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(field(m, name)).String()
}

func getInt64(m protoreflect.Message, name protoreflect.Name) int64 {
	return m.Get(field(m, name)).Int()
}

func getInt32(m protoreflect.Message, name protoreflect.Name) int {
	return int(m.Get(field(m, name)).Int())
}

func getBool(m protoreflect.Message, name protoreflect.Name) bool {
	return m.Get(field(m, name)).Bool()
}

// setMessage populates the singular message field name with fill.
func setMessage(m protoreflect.Message, name protoreflect.Name, fill func(protoreflect.Message)) {
	fill(m.Mutable(field(m, name)).Message())
}

// getMessage returns the singular message field name, or false when unset.
func getMessage(m protoreflect.Message, name protoreflect.Name) (protoreflect.Message, bool) {
	fd := field(m, name)
	if !m.Has(fd) {
		return nil, false
	}
	return m.Get(fd).Message(), true
}

func appendMessage(m protoreflect.Message, name protoreflect.Name, fill func(protoreflect.Message)) {
	list := m.Mutable(field(m, name)).List()
	elem := list.NewElement()
	fill(elem.Message())
	list.Append(elem)
}

func eachMessage(m protoreflect.Message, name protoreflect.Name, fn func(protoreflect.Message)) {
	list := m.Get(field(m, name)).List()
	for i := 0; i < list.Len(); i++ {
		fn(list.Get(i).Message())
	}
}
