package notify

import (
	"sync"

	"github.com/samber/lo"
)

// Tokens holds the device tokens registered by live clients, per identity.
type Tokens struct {
	mu   sync.RWMutex
	byID map[string][]string
}

// NewTokens creates an empty token registry.
func NewTokens() *Tokens {
	return &Tokens{byID: make(map[string][]string)}
}

// Add registers token for id. A token belongs to one identity at a time, so
// registering it again under another identity moves it.
func (t *Tokens) Add(id, token string) {
	if id == "" || token == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(token)
	t.byID[id] = append(t.byID[id], token)
}

// Remove forgets token wherever it is registered.
func (t *Tokens) Remove(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(token)
}

func (t *Tokens) removeLocked(token string) {
	for id, list := range t.byID {
		if !lo.Contains(list, token) {
			continue
		}
		list = lo.Without(list, token)
		if len(list) == 0 {
			delete(t.byID, id)
		} else {
			t.byID[id] = list
		}
	}
}

// Get returns a copy of id's tokens.
func (t *Tokens) Get(id string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.byID[id]...)
}
