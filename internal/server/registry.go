package server

import (
	"fmt"
	"sync"
)

// registry tracks live sessions by client id under a fixed capacity
type registry struct {
	mu       sync.RWMutex
	max      int
	sessions map[int]*Session
}

func newRegistry(max int) *registry {
	return &registry{max: max, sessions: make(map[int]*Session)}
}

// add claims a slot for s, failing with ErrResourceExhausted when full
func (r *registry) add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.max {
		return fmt.Errorf("%w: %d/%d sessions", ErrResourceExhausted, len(r.sessions), r.max)
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *registry) remove(id int) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
