package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by Emit after the connection has gone away.
	ErrClosed = errors.New("connection closed")
	// ErrQueueFull is returned by Emit when the client is not keeping up.
	ErrQueueFull = errors.New("send queue full")
)

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is one websocket client. Emit never blocks: frames go through a
// bounded queue drained by a single writer goroutine.
type Conn struct {
	id           string
	ws           *websocket.Conn
	out          chan outFrame
	closed       chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	user         atomic.Value // string
	logger       *zap.Logger
}

func newConn(ws *websocket.Conn, buffer int, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	id := uuid.NewString()
	c := &Conn{
		id:           id,
		ws:           ws,
		out:          make(chan outFrame, buffer),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger.With(zap.String("conn", id)),
	}
	c.user.Store("")
	return c
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// User returns the identity this connection identified as, if any.
func (c *Conn) User() string { return c.user.Load().(string) }

func (c *Conn) setUser(id string) { c.user.Store(id) }

// Emit queues an event for the client.
func (c *Conn) Emit(_ context.Context, event string, payload any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.out <- outFrame{Event: event, Data: payload}:
		return nil
	case <-c.closed:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

// writeLoop drains the queue until the connection closes.
func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case f := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := wsjson.Write(wctx, c.ws, f)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.String("event", f.Event), zap.Error(err))
				c.close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close(code, reason)
	})
}
