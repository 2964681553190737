package directory

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when the directory has no profile for an id.
var ErrNotFound = errors.New("profile not found")

// Profile is the user data the relay displays and notifies with.
type Profile struct {
	ID         string   `json:"id"`
	Fullname   string   `json:"fullname,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Avatar     string   `json:"avatar,omitempty"`
	PushTokens []string `json:"pushTokens,omitempty"`
}

// Directory looks up user profiles by identity.
type Directory interface {
	Lookup(ctx context.Context, id string) (*Profile, error)
}

// Static is an in-process Directory. The zero value is empty and usable.
type Static struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewStatic creates a static directory holding profiles.
func NewStatic(profiles ...Profile) *Static {
	s := &Static{}
	for _, p := range profiles {
		s.Put(p)
	}
	return s
}

// Put adds or replaces a profile.
func (s *Static) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profiles == nil {
		s.profiles = make(map[string]Profile)
	}
	s.profiles[p.ID] = p
}

func (s *Static) Lookup(ctx context.Context, id string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}
