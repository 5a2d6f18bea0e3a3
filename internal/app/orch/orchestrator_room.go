package orch

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) JoinRoom(s *core.Session, room domain.RoomID) {
	if room == "" {
		log.Debug().Str("module", "orch").Str("sid", string(s.ID)).Msg("join-room without id")
		return
	}
	if s.Closed() {
		return
	}
	if o.Rooms.Join(s, room) && s.Closed() {
		o.Rooms.Leave(s, room)
	}
}

func (o *Orchestrator) LeaveRoom(s *core.Session, room domain.RoomID) {
	if room == "" {
		return
	}
	o.Rooms.Leave(s, room)
}

func (o *Orchestrator) ListRooms() []core.RoomInfo {
	return o.Rooms.List()
}
