package server

import "sync"

// Registry maps session identities to live sessions.
// All mutation is exclusive; Snapshot hands out copies so callers can send
// without holding the lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers s. It reports false if the identity is already present.
func (r *Registry) Add(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; ok {
		return false
	}
	r.sessions[s.ID()] = s
	r.order = append(r.order, s.ID())
	s.setState(StateConnected, StateRegistered)
	return true
}

// Rename changes the nickname of a registered session in place.
func (r *Registry) Rename(id, nickname string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.setNickname(nickname)
	return true
}

// Remove unregisters id and returns the session that was registered under it.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return s, true
}

// Get looks up a session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns the registered sessions in registration order.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		sessions = append(sessions, r.sessions[id])
	}
	return sessions
}

// Roster returns id, nickname and address of every session in registration order.
func (r *Registry) Roster() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]ClientInfo, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, r.sessions[id].Info())
	}
	return roster
}
