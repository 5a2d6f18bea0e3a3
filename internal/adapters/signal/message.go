package signal

import (
	"github.com/dkeye/chatrelay/internal/app/orch"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

func (ctl *SignalWSController) handleSendMessage(sess *core.Session, env core.Envelope, ack core.Ack) {
	msg, ok := decode[domain.Message](sess, env)
	if !ok {
		ack.Reply(core.AckResponse{Error: orch.ErrTextMissingFields})
		return
	}
	ctl.Orch.SendMessage(sess, msg, ack)
}
