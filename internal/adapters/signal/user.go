package signal

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

func (ctl *SignalWSController) handleUserConnect(sess *core.Session, env core.Envelope) {
	claimed, ok := decode[domain.UserID](sess, env)
	if !ok {
		return
	}
	ctl.Orch.UserConnect(sess, claimed)
}

func (ctl *SignalWSController) handleWhoAmI(sess *core.Session) {
	resp := struct {
		User   *domain.User    `json:"user,omitempty"`
		System bool            `json:"system"`
		Rooms  []domain.RoomID `json:"rooms"`
	}{
		System: sess.IsSystem(),
		Rooms:  sess.Rooms(),
	}
	if u, ok := sess.User(); ok {
		resp.User = u
	}
	_ = sess.Emit("whoami", resp)
}
