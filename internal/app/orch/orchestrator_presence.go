package orch

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type userEvent struct {
	UserID domain.UserID `json:"userId"`
}

// UserConnect declares the connection online under its authenticated user.
func (o *Orchestrator) UserConnect(s *core.Session, claimed domain.UserID) {
	user, ok := s.User()
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(s.ID)).Msg("user-connect from system connection")
		return
	}
	if s.Closed() {
		return
	}
	if claimed != "" && claimed != user.ID {
		log.Warn().Str("module", "orch").Str("sid", string(s.ID)).
			Str("user", string(user.ID)).Str("claimed", string(claimed)).Msg("user-connect id mismatch")
	}

	first := o.Presence.Register(user.ID, s.ID)
	if s.Closed() {
		// The reconciler may have run before the register; take it back.
		if _, last := o.Presence.Unregister(s.ID); last && !first {
			o.toAll("user-offline", userEvent{UserID: user.ID})
		}
		o.Metrics.SetOnline(len(o.Presence.OnlineUserIDs()))
		return
	}
	if first {
		log.Info().Str("module", "orch").Str("user", string(user.ID)).Msg("user online")
		o.toAll("user-online", userEvent{UserID: user.ID})
	}
	o.Metrics.SetOnline(len(o.Presence.OnlineUserIDs()))
	o.emit(s, "online-users", o.Presence.OnlineUserIDs())
}

// GetOnlineUsers answers at most once per debounce window per connection.
func (o *Orchestrator) GetOnlineUsers(s *core.Session) {
	if !s.AllowOnlineQuery(o.now(), o.OnlineDebounce) {
		log.Debug().Str("module", "orch").Str("sid", string(s.ID)).Msg("online-users debounced")
		return
	}
	o.emit(s, "online-users", o.Presence.OnlineUserIDs())
}
