package signal

import (
	"context"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

func (ctl *SignalWSController) handleCall(ctx context.Context, sess *core.Session, env core.Envelope) {
	if env.Type == "call-initiate" {
		if p, ok := decode[domain.CallInitiate](sess, env); ok {
			ctl.Orch.CallInitiate(ctx, sess, p)
		}
		return
	}

	p, ok := decode[domain.CallAction](sess, env)
	if !ok {
		return
	}
	switch env.Type {
	case "call-accept":
		ctl.Orch.CallAccept(ctx, sess, p)
	case "call-join":
		ctl.Orch.CallJoin(ctx, sess, p)
	case "call-reject":
		ctl.Orch.CallReject(ctx, sess, p)
	case "call-end":
		ctl.Orch.CallEnd(ctx, sess, p)
	case "call-leave":
		ctl.Orch.CallLeave(ctx, sess, p)
	}
}

func (ctl *SignalWSController) handleToggle(sess *core.Session, env core.Envelope) {
	p, ok := decode[domain.CallToggle](sess, env)
	if !ok {
		return
	}
	switch env.Type {
	case "call-mute":
		ctl.Orch.CallMute(sess, p)
	case "call-video-toggle":
		ctl.Orch.CallVideoToggle(sess, p)
	case "call-screen-share":
		ctl.Orch.CallScreenShare(sess, p)
	case "call-hand-raise":
		ctl.Orch.CallHandRaise(sess, p)
	case "call-reaction":
		ctl.Orch.CallReaction(sess, p)
	}
}
