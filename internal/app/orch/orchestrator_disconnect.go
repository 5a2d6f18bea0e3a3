package orch

import (
	"context"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/rs/zerolog/log"
)

// OnDisconnect unwinds everything s held. It runs once per session no
// matter how many paths report the same teardown.
func (o *Orchestrator) OnDisconnect(ctx context.Context, s *core.Session) {
	s.Teardown(func() {
		o.Registry.Unbind(s.ID)
		o.Metrics.ConnClosed()

		if uid, last := o.Presence.Unregister(s.ID); last {
			log.Info().Str("module", "orch").Str("user", string(uid)).Msg("user offline")
			o.toAll("user-offline", userEvent{UserID: uid})
			o.Metrics.SetOnline(len(o.Presence.OnlineUserIDs()))
		}

		s.ResetOnlineQuery()

		for _, res := range o.Calls.LeaveSession(s.ID) {
			o.afterLeave(ctx, res)
		}

		o.Rooms.LeaveAll(s)
		s.Detach()
		log.Info().Str("module", "orch").Str("sid", string(s.ID)).
			Dur("connected_for", o.now().Sub(s.ConnectedAt)).Msg("session reconciled")
	})
}
