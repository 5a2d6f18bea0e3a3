package signal

import "github.com/dkeye/chatrelay/internal/core"

func (ctl *SignalWSController) handlePing(sess *core.Session) {
	_ = sess.Emit("pong", nil)
}
