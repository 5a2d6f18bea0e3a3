package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, sess *core.Session, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sess.ID)).Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("writePump ping")
				ctl.Orch.OnDisconnect(ctx, sess)
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sess.ID)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				ctl.Orch.OnDisconnect(ctx, sess)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("writePump write error")
				ctl.Orch.OnDisconnect(ctx, sess)
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sess *core.Session, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(ctx, sess)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Opts.PongWait))
	})

	guard := newFloodGuard(ctl.Opts.FrameRate, ctl.Opts.FrameBurst)
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump read error")
				}
				return
			}
			if !guard.Allow(sess) {
				continue
			}
			ctl.handleSignal(ctx, sess, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sess *core.Session, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("bad json")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("sid", string(sess.ID)).Str("event", env.Type).
				Interface("panic", r).Msg("handler panic")
		}
	}()

	ack := ctl.ackFor(sess, env.Ack)
	event := env.Type

	switch env.Type {
	case "user-connect":
		ctl.handleUserConnect(sess, env)
	case "get-online-users":
		ctl.Orch.GetOnlineUsers(sess)
	case "whoami":
		ctl.handleWhoAmI(sess)
	case "join-room":
		ctl.handleJoin(sess, env)
	case "leave-room":
		ctl.handleLeave(sess, env)
	case "send-message":
		ctl.handleSendMessage(sess, env, ack)
	case "typing":
		withPayload(sess, env, ctl.Orch.Typing)
	case "stop-typing":
		withPayload(sess, env, ctl.Orch.StopTyping)
	case "message-updated":
		withPayload(sess, env, ctl.Orch.MessageUpdated)
	case "message-deleted":
		withPayload(sess, env, ctl.Orch.MessageDeleted)
	case "reaction-updated":
		withPayload(sess, env, ctl.Orch.ReactionUpdated)
	case "message-read":
		withPayload(sess, env, ctl.Orch.MessageRead)
	case "message-delivered":
		withPayload(sess, env, ctl.Orch.MessageDelivered)
	case "call-initiate", "call-accept", "call-reject", "call-end", "call-join", "call-leave":
		ctl.handleCall(ctx, sess, env)
	case "call-mute", "call-video-toggle", "call-screen-share", "call-hand-raise", "call-reaction":
		ctl.handleToggle(sess, env)
	case "webrtc-signal":
		withPayload(sess, env, ctl.Orch.WebRTCSignal)
	case "ping":
		ctl.handlePing(sess)
	default:
		event = "unknown"
		log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Str("type", env.Type).Msg("unknown signal")
	}
	ctl.Orch.Metrics.Event(event)
}

// ackFor binds an ack id to the connection. Without an id there is nothing
// to answer.
func (ctl *SignalWSController) ackFor(sess *core.Session, id *int64) core.Ack {
	if id == nil {
		return nil
	}
	n := *id
	return func(resp core.AckResponse) {
		f, err := core.EncodeAck(n, resp)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("encode ack")
			return
		}
		if err := sess.Signal().TrySend(f); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("ack not queued")
		}
	}
}

func decode[T any](sess *core.Session, env core.Envelope) (T, bool) {
	var v T
	if len(env.Data) == 0 {
		return v, true
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Str("event", env.Type).Msg("bad payload")
		return v, false
	}
	return v, true
}

func withPayload[T any](sess *core.Session, env core.Envelope, fn func(*core.Session, T)) {
	if p, ok := decode[T](sess, env); ok {
		fn(sess, p)
	}
}
