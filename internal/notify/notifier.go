package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Notification is one push message handed to the gateway.
type Notification struct {
	Target    Target            `json:"target"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	MessageID string            `json:"messageId"`
	SenderID  string            `json:"senderId"`
	Data      map[string]string `json:"data,omitempty"`
}

// Notifier delivers notifications to a push gateway.
type Notifier interface {
	Publish(ctx context.Context, n Notification) error
}

// LogNotifier logs notifications instead of sending them.
type LogNotifier struct {
	Logger *zap.Logger
}

func (l LogNotifier) Publish(_ context.Context, n Notification) error {
	l.Logger.Info("push notification",
		zap.String("kind", string(n.Target.Kind)),
		zap.String("message_id", n.MessageID),
		zap.String("title", n.Title),
	)
	return nil
}

// NATSOptions configures the NATS notifier.
type NATSOptions struct {
	URL           string
	Subject       string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
	// OnState is called with false on disconnect and true on reconnect.
	OnState func(connected bool)
}

// NATSNotifier publishes notifications as JSON on a NATS subject for an
// external push gateway to consume.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSNotifier connects to NATS.
func NewNATSNotifier(opts NATSOptions, logger *zap.Logger) (*NATSNotifier, error) {
	if opts.Name == "" {
		opts.Name = "relayd"
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	onState := opts.OnState
	if onState == nil {
		onState = func(bool) {}
	}

	conn, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
			onState(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
			onState(true)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn, subject: opts.Subject, logger: logger}, nil
}

func (n *NATSNotifier) Publish(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}
