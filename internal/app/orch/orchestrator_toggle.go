package orch

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

type muted struct {
	CallID  domain.CallID `json:"callId"`
	UserID  domain.UserID `json:"userId"`
	IsMuted bool          `json:"isMuted"`
}

type videoToggled struct {
	CallID     domain.CallID `json:"callId"`
	UserID     domain.UserID `json:"userId"`
	IsVideoOff bool          `json:"isVideoOff"`
}

type screenShare struct {
	CallID domain.CallID `json:"callId"`
	UserID domain.UserID `json:"userId"`
}

type handRaised struct {
	CallID domain.CallID `json:"callId"`
	UserID domain.UserID `json:"userId"`
	Raised bool          `json:"raised"`
}

type reaction struct {
	CallID   domain.CallID `json:"callId"`
	UserID   domain.UserID `json:"userId"`
	Reaction string        `json:"reaction"`
}

// In-call toggles are plain relays to the rest of the room. They are not
// checked against the call table.

func (o *Orchestrator) CallMute(s *core.Session, p domain.CallToggle) {
	if user, ok := o.callActor(s, "call-mute", p); ok {
		o.toRoom(p.RoomID, s.ID, "call-participant-muted", muted{CallID: p.CallID, UserID: user.ID, IsMuted: p.IsMuted})
	}
}

func (o *Orchestrator) CallVideoToggle(s *core.Session, p domain.CallToggle) {
	if user, ok := o.callActor(s, "call-video-toggle", p); ok {
		o.toRoom(p.RoomID, s.ID, "call-participant-video-toggled", videoToggled{CallID: p.CallID, UserID: user.ID, IsVideoOff: p.IsVideoOff})
	}
}

func (o *Orchestrator) CallScreenShare(s *core.Session, p domain.CallToggle) {
	user, ok := o.callActor(s, "call-screen-share", p)
	if !ok {
		return
	}
	event := "call-screen-share-stopped"
	if p.IsSharing {
		event = "call-screen-share-started"
	}
	o.toRoom(p.RoomID, s.ID, event, screenShare{CallID: p.CallID, UserID: user.ID})
}

func (o *Orchestrator) CallHandRaise(s *core.Session, p domain.CallToggle) {
	if user, ok := o.callActor(s, "call-hand-raise", p); ok {
		o.toRoom(p.RoomID, s.ID, "call-hand-raised", handRaised{CallID: p.CallID, UserID: user.ID, Raised: p.Raised})
	}
}

func (o *Orchestrator) CallReaction(s *core.Session, p domain.CallToggle) {
	if user, ok := o.callActor(s, "call-reaction", p); ok {
		o.toRoom(p.RoomID, s.ID, "call-reaction", reaction{CallID: p.CallID, UserID: user.ID, Reaction: p.Reaction})
	}
}
