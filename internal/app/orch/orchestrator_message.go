package orch

import (
	"encoding/json"

	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	ErrTextMissingFields = "missing required fields"
	ErrTextMissingID     = "missing message id"
	ErrTextRateLimited   = "rate limit exceeded"
)

// SendMessage relays a chat message to its room. End users are excluded
// from their own fan-out and always appear as the sender; the system relay
// reaches every member with the sender fields it was given.
func (o *Orchestrator) SendMessage(s *core.Session, msg domain.Message, ack core.Ack) {
	if err := validate.Struct(msg); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(s.ID)).Msg("send-message rejected")
		ack.Reply(core.AckResponse{Error: ErrTextMissingFields})
		return
	}
	if msg.ID == "" {
		log.Warn().Str("module", "orch").Str("sid", string(s.ID)).Str("room", string(msg.RoomID)).Msg("send-message without id")
		ack.Reply(core.AckResponse{Error: ErrTextMissingID})
		return
	}
	if d := o.allow(s, app.CategoryMessage); !d.Allowed {
		ack.Reply(core.AckResponse{Error: ErrTextRateLimited, RetryAfter: d.RetryAfterSeconds()})
		return
	}

	var except core.SessionID
	switch p := s.Principal.(type) {
	case core.SystemRelay:
	case core.EndUser:
		except = s.ID
		msg.SenderID = p.User.ID
		msg.SenderName = p.User.Name
		msg.SenderAvatar = p.User.Avatar
	}

	o.toRoom(msg.RoomID, except, "receive-message", msg)
	ack.Reply(core.AckResponse{Success: true})
}

type typingEvent struct {
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName,omitempty"`
}

func (o *Orchestrator) Typing(s *core.Session, p domain.Typing) {
	o.typing(s, p, "user-typing")
}

func (o *Orchestrator) StopTyping(s *core.Session, p domain.Typing) {
	o.typing(s, p, "user-stop-typing")
}

func (o *Orchestrator) typing(s *core.Session, p domain.Typing, event string) {
	if err := validate.Struct(p); err != nil {
		return
	}
	if d := o.allow(s, app.CategoryTyping); !d.Allowed {
		return
	}
	out := typingEvent{RoomID: p.RoomID, UserID: p.UserID, UserName: p.UserName}
	if user, ok := s.User(); ok {
		out.UserID = user.ID
		if out.UserName == "" {
			out.UserName = user.Name
		}
	}
	if event == "user-stop-typing" {
		out.UserName = ""
	}
	o.toRoom(p.RoomID, s.ID, event, out)
}

type messageUpdated struct {
	MessageID string        `json:"messageId"`
	Content   string        `json:"content"`
	RoomID    domain.RoomID `json:"roomId"`
}

type messageDeleted struct {
	MessageID string        `json:"messageId"`
	RoomID    domain.RoomID `json:"roomId"`
}

type reactionUpdated struct {
	MessageID string          `json:"messageId"`
	RoomID    domain.RoomID   `json:"roomId"`
	Reactions json.RawMessage `json:"reactions"`
}

type receiptEvent struct {
	MessageID string        `json:"messageId"`
	UserID    domain.UserID `json:"userId"`
	RoomID    domain.RoomID `json:"roomId"`
}

// MessageUpdated and the other mutations reach the whole room, sender
// included.
func (o *Orchestrator) MessageUpdated(s *core.Session, p domain.MessageEdit) {
	if !o.gate(s, "message-updated", p, app.CategoryMutation) {
		return
	}
	o.toRoom(p.RoomID, "", "message-updated", messageUpdated{MessageID: p.MessageID, Content: p.Content, RoomID: p.RoomID})
}

func (o *Orchestrator) MessageDeleted(s *core.Session, p domain.MessageEdit) {
	if !o.gate(s, "message-deleted", p, app.CategoryMutation) {
		return
	}
	o.toRoom(p.RoomID, "", "message-deleted", messageDeleted{MessageID: p.MessageID, RoomID: p.RoomID})
}

// ReactionUpdated is validated but never rate limited.
func (o *Orchestrator) ReactionUpdated(s *core.Session, p domain.Reactions) {
	if !o.valid(s, "reaction-updated", p) {
		return
	}
	reactions := p.Reactions
	if len(reactions) == 0 {
		reactions = json.RawMessage("null")
	}
	o.toRoom(p.RoomID, "", "reaction-updated", reactionUpdated{MessageID: p.MessageID, RoomID: p.RoomID, Reactions: reactions})
}

func (o *Orchestrator) MessageRead(s *core.Session, p domain.Receipt) {
	if !o.gate(s, "message-read", p, app.CategoryReceipt) {
		return
	}
	uid := p.UserID
	if id := s.UserID(); id != "" {
		uid = id
	}
	o.toRoom(p.RoomID, "", "message-read-update", receiptEvent{MessageID: p.MessageID, UserID: uid, RoomID: p.RoomID})
}

func (o *Orchestrator) MessageDelivered(s *core.Session, p domain.Receipt) {
	if !o.gate(s, "message-delivered", p, app.CategoryReceipt) {
		return
	}
	o.toRoom(p.RoomID, "", "message-delivered-update", receiptEvent{MessageID: p.MessageID, UserID: s.UserID(), RoomID: p.RoomID})
}

// gate validates p and consumes one point of cat. Refusals are dropped
// without an answer.
func (o *Orchestrator) gate(s *core.Session, event string, p any, cat app.Category) bool {
	return o.valid(s, event, p) && o.allow(s, cat).Allowed
}

func (o *Orchestrator) valid(s *core.Session, event string, p any) bool {
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(s.ID)).Str("event", event).Msg("invalid payload")
		return false
	}
	return true
}
