package app

import (
	"sort"
	"sync"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Presence tracks which users have at least one declared-online connection.
type Presence struct {
	mu    sync.RWMutex
	users map[domain.UserID]map[core.SessionID]uint64
	owner map[core.SessionID]domain.UserID
	seq   uint64
}

func NewPresence() *Presence {
	return &Presence{
		users: make(map[domain.UserID]map[core.SessionID]uint64),
		owner: make(map[core.SessionID]domain.UserID),
	}
}

// Register adds sid to uid's connection set and reports whether uid just
// came online. Registering a known pair again is a no-op.
func (p *Presence) Register(uid domain.UserID, sid core.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.owner[sid]; ok {
		if prev == uid {
			return false
		}
		p.removeLocked(sid)
	}

	conns, ok := p.users[uid]
	if !ok {
		conns = make(map[core.SessionID]uint64)
		p.users[uid] = conns
	}
	p.seq++
	conns[sid] = p.seq
	p.owner[sid] = uid
	log.Debug().Str("module", "app.presence").Str("user", string(uid)).Str("sid", string(sid)).Int("connections", len(conns)).Msg("registered")
	return len(conns) == 1
}

// Unregister removes sid and reports the owning user and whether that user
// just went offline. Unknown sids are a no-op.
func (p *Presence) Unregister(sid core.SessionID) (domain.UserID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	uid, ok := p.owner[sid]
	if !ok {
		return "", false
	}
	return uid, p.removeLocked(sid)
}

func (p *Presence) removeLocked(sid core.SessionID) bool {
	uid := p.owner[sid]
	delete(p.owner, sid)
	conns := p.users[uid]
	delete(conns, sid)
	if len(conns) > 0 {
		return false
	}
	delete(p.users, uid)
	log.Debug().Str("module", "app.presence").Str("user", string(uid)).Msg("last connection gone")
	return true
}

func (p *Presence) IsOnline(uid domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.users[uid]
	return ok
}

// OnlineUserIDs returns the online users in a stable order.
func (p *Presence) OnlineUserIDs() []domain.UserID {
	p.mu.RLock()
	out := make([]domain.UserID, 0, len(p.users))
	for uid := range p.users {
		out = append(out, uid)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LatestConnection returns the most recently registered connection of uid.
func (p *Presence) LatestConnection(uid domain.UserID) (core.SessionID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var (
		best    core.SessionID
		bestSeq uint64
	)
	for sid, seq := range p.users[uid] {
		if seq > bestSeq {
			best, bestSeq = sid, seq
		}
	}
	return best, bestSeq > 0
}
