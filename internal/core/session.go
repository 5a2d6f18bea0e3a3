package core

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/chatrelay/internal/domain"
)

type SessionID string

// Principal is who a connection speaks for: an EndUser or the SystemRelay.
type Principal interface {
	principal()
}

// EndUser is an ordinary authenticated connection.
type EndUser struct {
	User domain.User
}

// SystemRelay is the persistence layer announcing durably saved messages.
// It never maps to a user record.
type SystemRelay struct{}

func (EndUser) principal()     {}
func (SystemRelay) principal() {}

// Session is the per-connection bundle: identity, transport endpoint, joined
// rooms and the online-users query debounce. It lives exactly as long as the
// connection.
type Session struct {
	ID          SessionID
	Principal   Principal
	ConnectedAt time.Time

	signal SignalConnection

	mu              sync.Mutex
	rooms           map[domain.RoomID]struct{}
	lastOnlineQuery time.Time
	cancel          context.CancelFunc
	closed          bool

	teardown sync.Once
}

func NewSession(id SessionID, p Principal, signal SignalConnection, now time.Time) *Session {
	return &Session{
		ID:          id,
		Principal:   p,
		ConnectedAt: now,
		signal:      signal,
		rooms:       make(map[domain.RoomID]struct{}),
	}
}

func (s *Session) Signal() SignalConnection { return s.signal }

// User returns the resolved user of an end-user connection.
func (s *Session) User() (*domain.User, bool) {
	if eu, ok := s.Principal.(EndUser); ok {
		u := eu.User
		return &u, true
	}
	return nil, false
}

func (s *Session) UserID() domain.UserID {
	if eu, ok := s.Principal.(EndUser); ok {
		return eu.User.ID
	}
	return ""
}

func (s *Session) IsSystem() bool {
	_, ok := s.Principal.(SystemRelay)
	return ok
}

// RateKey identifies the caller for rate limiting: the user id when known,
// else the connection id.
func (s *Session) RateKey() string {
	if id := s.UserID(); id != "" {
		return string(id)
	}
	return string(s.ID)
}

// Emit encodes and queues one event for this connection only.
func (s *Session) Emit(event string, data any) error {
	f, err := Encode(event, data)
	if err != nil {
		return err
	}
	return s.signal.TrySend(f)
}

func (s *Session) AddRoom(room domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; ok {
		return false
	}
	s.rooms[room] = struct{}{}
	return true
}

func (s *Session) RemoveRoom(room domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room]; !ok {
		return false
	}
	delete(s.rooms, room)
	return true
}

func (s *Session) InRoom(room domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[room]
	return ok
}

func (s *Session) Rooms() []domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomID, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// AllowOnlineQuery reports whether an online-users query at now falls
// outside the debounce window of the previous answered one.
func (s *Session) AllowOnlineQuery(now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastOnlineQuery.IsZero() && now.Sub(s.lastOnlineQuery) < window {
		return false
	}
	s.lastOnlineQuery = now
	return true
}

func (s *Session) ResetOnlineQuery() {
	s.mu.Lock()
	s.lastOnlineQuery = time.Time{}
	s.mu.Unlock()
}

// BindCancel attaches the cancel func of the connection's pumps.
func (s *Session) BindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// Teardown marks the session closed and runs fn at most once. It reports
// whether fn ran.
func (s *Session) Teardown(fn func()) bool {
	ran := false
	s.teardown.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		ran = true
		fn()
	})
	return ran
}

// Closed reports whether teardown has started. A handler that adds s to a
// table checks it again afterwards and unwinds when it turned true.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Detach cancels the pumps and closes the transport endpoint.
func (s *Session) Detach() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.signal.Close()
}
