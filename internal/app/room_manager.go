package app

import (
	"sync"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManagerImpl is the in-process Fanout: room id -> broadcast group.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

var _ core.Fanout = (*RoomManagerImpl)(nil)

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

// Join adds s to room. Empty room ids and repeated joins are no-ops.
func (f *RoomManagerImpl) Join(s *core.Session, id domain.RoomID) bool {
	if id == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		room = core.NewRoomService(id)
		f.rooms[id] = room
	}
	if !room.AddMember(s) {
		return false
	}
	s.AddRoom(id)
	log.Info().Str("module", "app.rooms").Str("sid", string(s.ID)).Str("room", string(id)).Msg("joined")
	return true
}

// Leave removes s from room; leaving a room never joined is a no-op.
func (f *RoomManagerImpl) Leave(s *core.Session, id domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaveLocked(s, id)
}

func (f *RoomManagerImpl) leaveLocked(s *core.Session, id domain.RoomID) bool {
	s.RemoveRoom(id)
	room, ok := f.rooms[id]
	if !ok || !room.RemoveMember(s.ID) {
		return false
	}
	if room.MemberCount() == 0 {
		delete(f.rooms, id)
	}
	log.Info().Str("module", "app.rooms").Str("sid", string(s.ID)).Str("room", string(id)).Msg("left")
	return true
}

func (f *RoomManagerImpl) LeaveAll(s *core.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range s.Rooms() {
		f.leaveLocked(s, id)
	}
}

func (f *RoomManagerImpl) ToRoom(id domain.RoomID, except core.SessionID, data core.Frame) core.PublishResult {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if !ok {
		return core.PublishResult{}
	}
	return room.Broadcast(except, data)
}

func (f *RoomManagerImpl) MemberCount(id domain.RoomID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if room, ok := f.rooms[id]; ok {
		return room.MemberCount()
	}
	return 0
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}
