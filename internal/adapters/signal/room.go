package signal

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sess *core.Session, env core.Envelope) {
	room, ok := decode[domain.RoomID](sess, env)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("room", string(room)).Msg("join")
	ctl.Orch.JoinRoom(sess, room)
}

// handleLeave leaves one room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sess *core.Session, env core.Envelope) {
	room, ok := decode[domain.RoomID](sess, env)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("room", string(room)).Msg("leave")
	ctl.Orch.LeaveRoom(sess, room)
}
