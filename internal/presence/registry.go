package presence

import (
	"context"
	"hash/fnv"
	"sync"
)

// Conn is one live transport session. Implementations must be comparable
// (pointer types) because the registry keys sets by Conn value.
type Conn interface {
	ID() string
	Emit(ctx context.Context, event string, payload any) error
}

const shardCount = 32

type shard struct {
	mu   sync.Mutex
	sets map[string]map[Conn]struct{}
}

// Registry maps identities to their live connections. Lookups hash onto
// independently locked shards. Mutations also hold mu, which guards the
// owner index, so a conn's owner entry and its set membership change
// together. Lock order is mu, then shard.
type Registry struct {
	shards [shardCount]*shard

	mu     sync.Mutex
	owners map[Conn]string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	r := &Registry{owners: make(map[Conn]string)}
	for i := range r.shards {
		r.shards[i] = &shard{sets: make(map[string]map[Conn]struct{})}
	}
	return r
}

func (r *Registry) shardFor(identity string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return r.shards[h.Sum32()%shardCount]
}

// Register adds conn to identity's set. Registering the same pair twice is a
// no-op; registering conn under a new identity moves it.
func (r *Registry) Register(identity string, conn Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.owners[conn]; ok && prev != identity {
		r.remove(prev, conn)
	}
	r.owners[conn] = identity

	s := r.shardFor(identity)
	s.mu.Lock()
	set, ok := s.sets[identity]
	if !ok {
		set = make(map[Conn]struct{})
		s.sets[identity] = set
	}
	set[conn] = struct{}{}
	s.mu.Unlock()
}

// Unregister removes conn from whichever identity holds it. Unknown
// connections are ignored.
func (r *Registry) Unregister(conn Conn) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.owners[conn]
	if !ok {
		return
	}
	delete(r.owners, conn)
	r.remove(identity, conn)
}

func (r *Registry) remove(identity string, conn Conn) {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[identity]
	if !ok {
		return
	}
	delete(set, conn)
	// No empty sets survive a removal.
	if len(set) == 0 {
		delete(s.sets, identity)
	}
}

// HandlesFor returns a snapshot of identity's connections. The slice is
// owned by the caller and may be empty.
func (r *Registry) HandlesFor(identity string) []Conn {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.sets[identity]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Online reports whether identity has at least one live connection.
func (r *Registry) Online(identity string) bool {
	s := r.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sets[identity]
	return ok
}

// Len returns the total number of registered connections.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for _, set := range s.sets {
			n += len(set)
		}
		s.mu.Unlock()
	}
	return n
}

// Identities returns the number of identities with live connections.
func (r *Registry) Identities() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.sets)
		s.mu.Unlock()
	}
	return n
}
