package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is the in-process Store backend. Mutations are serialized; state is
// lost when the process exits.
type Memory struct {
	mu   sync.RWMutex
	msgs []Message
	seq  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Save(_ context.Context, m *Message) (*Message, error) {
	rec, err := prepare(m)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.msgs {
		if existing.ID == rec.ID {
			return nil, fmt.Errorf("save message: duplicate id %q", rec.ID)
		}
	}
	s.seq++
	rec.Seq = s.seq
	s.msgs = append(s.msgs, rec)

	out := rec
	return &out, nil
}

func (s *Memory) GetByPeers(_ context.Context, a, b string) ([]Message, error) {
	return s.filter(func(m *Message) bool {
		return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
	}), nil
}

func (s *Memory) GetByParticipant(_ context.Context, id string) ([]Message, error) {
	return s.filter(func(m *Message) bool {
		return m.SenderID == id || m.ReceiverID == id
	}), nil
}

func (s *Memory) MarkRead(_ context.Context, receiver, sender string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.ReceiverID == receiver && m.SenderID == sender && !m.Read {
			m.Read = true
		}
	}
	return true, nil
}

func (s *Memory) CountUnread(_ context.Context, receiver string) (int, error) {
	return s.count(func(m *Message) bool {
		return m.ReceiverID == receiver && !m.Read
	}), nil
}

func (s *Memory) CountUnreadFrom(_ context.Context, receiver, sender string) (int, error) {
	return s.count(func(m *Message) bool {
		return m.ReceiverID == receiver && m.SenderID == sender && !m.Read
	}), nil
}

func (s *Memory) GetByID(_ context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.msgs {
		if m.ID == id {
			out := m
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Memory) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.msgs {
		if m.ID == id {
			s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Memory) Close() error { return nil }

func (s *Memory) filter(keep func(*Message) bool) []Message {
	s.mu.RLock()
	out := make([]Message, 0)
	for i := range s.msgs {
		if keep(&s.msgs[i]) {
			out = append(out, s.msgs[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func (s *Memory) count(match func(*Message) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for i := range s.msgs {
		if match(&s.msgs[i]) {
			n++
		}
	}
	return n
}
