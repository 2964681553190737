package notify

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/directory"
	"github.com/matheus3301/relay/internal/identity"
	"github.com/matheus3301/relay/internal/metrics"
	"github.com/matheus3301/relay/internal/store"
	"go.uber.org/zap"
)

const (
	maxBodyRunes  = 120
	lookupTimeout = 3 * time.Second
	fileBody      = "Sent a file"
)

// Dispatcher turns saved messages into push notifications for the receiver.
type Dispatcher struct {
	ids      identity.Normalizer
	bus      *bus.Bus
	tokens   *Tokens
	dir      directory.Directory
	notifier Notifier
	title    string
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDispatcher creates a dispatcher. dir may be nil.
func NewDispatcher(ids identity.Normalizer, b *bus.Bus, tokens *Tokens, dir directory.Directory, n Notifier, title string, logger *zap.Logger) *Dispatcher {
	if title == "" {
		title = "New message"
	}
	return &Dispatcher{
		ids:      ids,
		bus:      b,
		tokens:   tokens,
		dir:      dir,
		notifier: n,
		title:    title,
		logger:   logger,
	}
}

// Start subscribes to saved messages on the bus.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	ch, unsub := d.bus.Subscribe(bus.KindMessageSaved, 256)

	go func() {
		defer close(d.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				msg, ok := evt.Payload.(store.Message)
				if !ok {
					continue
				}
				if err := d.Notify(ctx, msg); err != nil {
					d.logger.Warn("push notification failed", zap.String("message_id", msg.ID), zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the dispatcher and waits for the handler goroutine to exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
}

// Notify pushes a notification for msg to its receiver. Messages a user sends
// to themselves are skipped.
func (d *Dispatcher) Notify(ctx context.Context, msg store.Message) error {
	sender, receiver := d.ids.Canonical(msg.SenderID), d.ids.Canonical(msg.ReceiverID)
	if sender == receiver {
		return nil
	}

	note := Notification{
		Target:    Resolve(d.tokensFor(ctx, receiver), receiver),
		Title:     d.title,
		Body:      body(msg),
		MessageID: msg.ID,
		SenderID:  sender,
		Data: map[string]string{
			"messageId": msg.ID,
			"senderId":  sender,
			"mimeType":  msg.MimeType,
		},
	}
	if err := d.notifier.Publish(ctx, note); err != nil {
		metrics.PushPublished.WithLabelValues("error").Inc()
		return err
	}
	metrics.PushPublished.WithLabelValues(string(note.Target.Kind)).Inc()
	return nil
}

// tokensFor prefers tokens registered over the live channel and falls back
// to the profile directory.
func (d *Dispatcher) tokensFor(ctx context.Context, id string) []string {
	if tokens := d.tokens.Get(id); len(tokens) > 0 {
		return tokens
	}
	if d.dir == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	p, err := d.dir.Lookup(lctx, id)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			d.logger.Debug("push token lookup failed", zap.String("id", id), zap.Error(err))
		}
		return nil
	}
	return p.PushTokens
}

func body(msg store.Message) string {
	if !strings.HasPrefix(msg.MimeType, "text/") {
		return fileBody
	}
	if utf8.RuneCountInString(msg.Content) <= maxBodyRunes {
		return msg.Content
	}
	r := []rune(msg.Content)
	return string(r[:maxBodyRunes-1]) + "…"
}
