package delivery

import (
	"context"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/metrics"
	"github.com/matheus3301/relay/internal/presence"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
)

// Live event names emitted to connections.
const (
	EventNewMessage  = "new_message"
	EventMessageSent = "message_sent"
)

// Router pushes stored messages to every live connection of both parties.
// Delivery is best-effort: a party without connections receives nothing and
// the message stays available through history.
type Router struct {
	ids      identity.Normalizer
	registry *presence.Registry
	bus      *bus.Bus
	logger   *zap.Logger
}

// NewRouter creates a delivery router. b may be nil.
func NewRouter(ids identity.Normalizer, registry *presence.Registry, b *bus.Bus, logger *zap.Logger) *Router {
	return &Router{
		ids:      ids,
		registry: registry,
		bus:      b,
		logger:   logger,
	}
}

// Deliver emits new_message to the receiver's connections and message_sent to
// the sender's. Emit failures are logged per connection and never returned.
func (r *Router) Deliver(ctx context.Context, msg *store.Message) {
	if msg == nil {
		return
	}
	receiver := r.ids.Canonical(msg.ReceiverID)
	sender := r.ids.Canonical(msg.SenderID)

	toReceiver := r.registry.HandlesFor(receiver)
	toSender := r.registry.HandlesFor(sender)

	delivered := r.emit(ctx, toReceiver, EventNewMessage, msg)
	echoed := r.emit(ctx, toSender, EventMessageSent, msg)

	r.logger.Debug("message delivered",
		zap.String("message_id", msg.ID),
		zap.String("receiver", receiver),
		zap.Int("receiver_handles", delivered),
		zap.String("sender", sender),
		zap.Int("sender_handles", echoed),
	)

	if r.bus != nil {
		r.bus.Emit(bus.KindMessageDelivered, bus.Delivery{
			MessageID:       msg.ID,
			ReceiverID:      receiver,
			SenderID:        sender,
			ReceiverHandles: delivered,
			SenderHandles:   echoed,
		})
	}
}

// emit sends event to every handle and returns how many accepted it.
func (r *Router) emit(ctx context.Context, handles []presence.Conn, event string, msg *store.Message) int {
	ok := 0
	for _, h := range handles {
		if err := h.Emit(ctx, event, msg); err != nil {
			metrics.DeliveryEmits.WithLabelValues(event, "error").Inc()
			r.logger.Warn("emit failed",
				zap.String("event", event),
				zap.String("conn", h.ID()),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.DeliveryEmits.WithLabelValues(event, "ok").Inc()
		ok++
	}
	return ok
}
