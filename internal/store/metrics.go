package store

import (
	"context"
	"time"

	"github.com/matheus3301/relay/internal/metrics"
)

// WithMetrics returns a Store that records latency for every operation.
func WithMetrics(inner Store) Store {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner Store
}

func observe(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) Save(ctx context.Context, msg *Message) (*Message, error) {
	defer observe("save", time.Now())
	return m.inner.Save(ctx, msg)
}

func (m *metricsStore) GetByPeers(ctx context.Context, a, b string) ([]Message, error) {
	defer observe("get_by_peers", time.Now())
	return m.inner.GetByPeers(ctx, a, b)
}

func (m *metricsStore) GetByParticipant(ctx context.Context, id string) ([]Message, error) {
	defer observe("get_by_participant", time.Now())
	return m.inner.GetByParticipant(ctx, id)
}

func (m *metricsStore) MarkRead(ctx context.Context, receiver, sender string) (bool, error) {
	defer observe("mark_read", time.Now())
	return m.inner.MarkRead(ctx, receiver, sender)
}

func (m *metricsStore) CountUnread(ctx context.Context, receiver string) (int, error) {
	defer observe("count_unread", time.Now())
	return m.inner.CountUnread(ctx, receiver)
}

func (m *metricsStore) CountUnreadFrom(ctx context.Context, receiver, sender string) (int, error) {
	defer observe("count_unread_from", time.Now())
	return m.inner.CountUnreadFrom(ctx, receiver, sender)
}

func (m *metricsStore) GetByID(ctx context.Context, id string) (*Message, error) {
	defer observe("get_by_id", time.Now())
	return m.inner.GetByID(ctx, id)
}

func (m *metricsStore) Delete(ctx context.Context, id string) (bool, error) {
	defer observe("delete", time.Now())
	return m.inner.Delete(ctx, id)
}

func (m *metricsStore) Close() error {
	return m.inner.Close()
}
