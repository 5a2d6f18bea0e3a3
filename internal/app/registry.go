package app

import (
	"sync"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/rs/zerolog/log"
)

// Registry holds every live connection, authenticated or not yet declared
// online.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*core.Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*core.Session),
	}
}

func (r *Registry) Bind(s *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID)).Msg("bound session")
}

func (r *Registry) Unbind(sid core.SessionID) (*core.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return s, true
}

func (r *Registry) GetSession(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) All() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast sends data to every live connection.
func (r *Registry) Broadcast(data core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for _, s := range r.All() {
		if err := s.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		res.SendTo++
	}
	return res
}
