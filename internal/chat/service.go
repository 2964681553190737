package chat

import (
	"cmp"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/conversations"
	"github.com/matheus3301/relay/internal/delivery"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/store"
	"github.com/matheus3301/relay/internal/uploads"
	"go.uber.org/zap"
)

// SendRequest is a message submitted by a client.
type SendRequest struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required"`
	MimeType   string `json:"mimeType,omitempty"`
}

// ReadRequest marks everything sender sent to receiver as read.
type ReadRequest struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	SenderID   string `json:"senderId" validate:"required"`
}

// Service is the application layer shared by every transport.
type Service struct {
	ids     identity.Normalizer
	store   store.Store
	router  *delivery.Router
	agg     *conversations.Aggregator
	uploads *uploads.Dir
	bus     *bus.Bus
	logger  *zap.Logger
}

// Deps groups the collaborators of a Service. Uploads and Bus may be nil.
type Deps struct {
	IDs        identity.Normalizer
	Store      store.Store
	Router     *delivery.Router
	Aggregator *conversations.Aggregator
	Uploads    *uploads.Dir
	Bus        *bus.Bus
	Logger     *zap.Logger
}

// NewService creates a chat service.
func NewService(d Deps) *Service {
	return &Service{
		ids:     d.IDs,
		store:   d.Store,
		router:  d.Router,
		agg:     d.Aggregator,
		uploads: d.Uploads,
		bus:     d.Bus,
		logger:  d.Logger,
	}
}

// Operator returns the canonical operator id.
func (s *Service) Operator() string {
	return s.ids.Operator()
}

// Canonical normalizes an identity.
func (s *Service) Canonical(id string) string {
	return s.ids.Canonical(id)
}

// Send stores a message and pushes it to both parties' live connections.
// Base64 data URL content is stored as an upload first.
func (s *Service) Send(ctx context.Context, req SendRequest) (*store.Message, error) {
	req.SenderID = s.ids.Canonical(req.SenderID)
	req.ReceiverID = s.ids.Canonical(req.ReceiverID)
	if strings.TrimSpace(req.Content) == "" {
		req.Content = ""
	}
	if err := check(req); err != nil {
		return nil, err
	}

	if s.uploads != nil && uploads.IsDataURL(req.Content) {
		f, err := s.uploads.SaveDataURL(req.Content)
		if err != nil {
			return nil, uploadError(err)
		}
		req.Content = f.PublicPath
		req.MimeType = f.MimeType
	}

	saved, err := s.store.Save(ctx, &store.Message{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		MimeType:   req.MimeType,
	})
	if err != nil {
		return nil, internalError("failed to save message", err)
	}
	s.logger.Info("message saved",
		zap.String("message_id", saved.ID),
		zap.String("sender", saved.SenderID),
		zap.String("receiver", saved.ReceiverID),
		zap.String("mime_type", saved.MimeType),
	)

	if s.bus != nil {
		s.bus.Emit(bus.KindMessageSaved, *saved)
	}
	if s.router != nil {
		s.router.Deliver(ctx, saved)
	}
	return saved, nil
}

// SendFile stores r as an upload and sends a message referencing it.
func (s *Service) SendFile(ctx context.Context, senderID, receiverID string, r io.Reader, declaredMime string) (*store.Message, error) {
	if s.uploads == nil {
		return nil, newError(CodeUnavailable, "file uploads are disabled", nil)
	}
	if s.ids.Canonical(senderID) == "" || s.ids.Canonical(receiverID) == "" {
		return nil, validationError("senderId and receiverId are required")
	}
	f, err := s.uploads.Save(r, declaredMime)
	if err != nil {
		return nil, uploadError(err)
	}
	msg, err := s.Send(ctx, SendRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    f.PublicPath,
		MimeType:   f.MimeType,
	})
	if err != nil {
		_ = s.uploads.Remove(f.PublicPath)
		return nil, err
	}
	return msg, nil
}

func uploadError(err error) error {
	switch {
	case errors.Is(err, uploads.ErrTooLarge):
		return validationError("file is too large")
	case errors.Is(err, uploads.ErrInvalidDataURL):
		return validationError("invalid data URL")
	}
	return internalError("failed to store file", err)
}

// storedForms lists every id a participant's rows may be stored under. Rows
// written before an alias was configured keep the alias, so the operator
// spans all of them.
func (s *Service) storedForms(id string) []string {
	if s.ids.IsOperator(id) {
		return s.ids.Aliases()
	}
	return []string{id}
}

// History returns the conversation between a and b, oldest first.
func (s *Service) History(ctx context.Context, a, b string) ([]store.Message, error) {
	a, b = s.ids.Canonical(a), s.ids.Canonical(b)
	if a == "" || b == "" {
		return nil, validationError("both participants are required")
	}
	aForms, bForms := s.storedForms(a), s.storedForms(b)
	if len(aForms) == 1 && len(bForms) == 1 {
		msgs, err := s.store.GetByPeers(ctx, a, b)
		if err != nil {
			return nil, internalError("failed to load history", err)
		}
		return msgs, nil
	}

	out := []store.Message{}
	seen := make(map[string]struct{})
	for _, x := range aForms {
		for _, y := range bForms {
			msgs, err := s.store.GetByPeers(ctx, x, y)
			if err != nil {
				return nil, internalError("failed to load history", err)
			}
			for _, m := range msgs {
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
				out = append(out, m)
			}
		}
	}
	slices.SortStableFunc(out, func(x, y store.Message) int {
		if c := x.Timestamp.Compare(y.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(x.Seq, y.Seq)
	})
	return out, nil
}

// UnreadCount counts unread messages addressed to receiver.
func (s *Service) UnreadCount(ctx context.Context, receiver string) (int, error) {
	receiver = s.ids.Canonical(receiver)
	if receiver == "" {
		return 0, validationError("userId is required")
	}
	total := 0
	for _, r := range s.storedForms(receiver) {
		n, err := s.store.CountUnread(ctx, r)
		if err != nil {
			return 0, internalError("failed to count unread messages", err)
		}
		total += n
	}
	return total, nil
}

// UnreadCountFrom counts unread messages from sender to receiver.
func (s *Service) UnreadCountFrom(ctx context.Context, receiver, sender string) (int, error) {
	receiver, sender = s.ids.Canonical(receiver), s.ids.Canonical(sender)
	if receiver == "" || sender == "" {
		return 0, validationError("userId and senderId are required")
	}
	total := 0
	for _, r := range s.storedForms(receiver) {
		for _, snd := range s.storedForms(sender) {
			n, err := s.store.CountUnreadFrom(ctx, r, snd)
			if err != nil {
				return 0, internalError("failed to count unread messages", err)
			}
			total += n
		}
	}
	return total, nil
}

// MarkRead flags every unread message from sender to receiver as read.
func (s *Service) MarkRead(ctx context.Context, req ReadRequest) (bool, error) {
	req.ReceiverID = s.ids.Canonical(req.ReceiverID)
	req.SenderID = s.ids.Canonical(req.SenderID)
	if err := check(req); err != nil {
		return false, err
	}
	for _, r := range s.storedForms(req.ReceiverID) {
		for _, snd := range s.storedForms(req.SenderID) {
			if _, err := s.store.MarkRead(ctx, r, snd); err != nil {
				return false, internalError("failed to mark messages as read", err)
			}
		}
	}
	if s.bus != nil {
		s.bus.Emit(bus.KindMessageRead, bus.ReadReceipt{ReceiverID: req.ReceiverID, SenderID: req.SenderID})
	}
	return true, nil
}

// Conversations returns the operator's conversation list. It never fails;
// store errors produce an empty list.
func (s *Service) Conversations(ctx context.Context, operatorID string) []conversations.Summary {
	return s.agg.Build(ctx, operatorID)
}

// Get returns a single message.
func (s *Service) Get(ctx context.Context, id string) (*store.Message, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError("messageId is required")
	}
	m, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, internalError("failed to load message", err)
	}
	if m == nil {
		return nil, newError(CodeNotFound, "message not found", nil)
	}
	return m, nil
}

// Delete removes a message and, for file messages, its upload.
func (s *Service) Delete(ctx context.Context, id string) error {
	m, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, m.ID)
	if err != nil {
		return internalError("failed to delete message", err)
	}
	if !ok {
		return newError(CodeNotFound, "message not found", nil)
	}

	if s.uploads != nil && uploads.IsUpload(m.Content) {
		if err := s.uploads.Remove(m.Content); err != nil {
			s.logger.Warn("remove upload", zap.String("message_id", m.ID), zap.String("path", m.Content), zap.Error(err))
		}
	}
	s.logger.Info("message deleted", zap.String("message_id", m.ID))
	if s.bus != nil {
		s.bus.Emit(bus.KindMessageDeleted, *m)
	}
	return nil
}
