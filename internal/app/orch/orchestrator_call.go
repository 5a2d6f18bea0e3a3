package orch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type incomingCall struct {
	CallID       domain.CallID   `json:"callId"`
	RoomID       domain.RoomID   `json:"roomId"`
	CallType     domain.CallType `json:"callType"`
	CallerID     domain.UserID   `json:"callerId"`
	CallerName   string          `json:"callerName"`
	CallerAvatar string          `json:"callerAvatar,omitempty"`
}

type callUser struct {
	CallID   domain.CallID `json:"callId"`
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName,omitempty"`
}

type callRoster struct {
	CallID       domain.CallID   `json:"callId"`
	RoomID       domain.RoomID   `json:"roomId"`
	UserID       domain.UserID   `json:"userId"`
	UserName     string          `json:"userName,omitempty"`
	Participants []domain.UserID `json:"participants"`
}

type callEnded struct {
	CallID   domain.CallID `json:"callId"`
	RoomID   domain.RoomID `json:"roomId"`
	EndedBy  domain.UserID `json:"endedBy"`
	Duration int64         `json:"duration"`
}

type relayedSignal struct {
	From   domain.UserID   `json:"from"`
	Signal json.RawMessage `json:"signal"`
	CallID domain.CallID   `json:"callId,omitempty"`
}

// callActor resolves the acting user and validates p. System connections
// take no part in calls.
func (o *Orchestrator) callActor(s *core.Session, event string, p any) (*domain.User, bool) {
	user, ok := s.User()
	if !ok {
		log.Warn().Str("module", "orch.call").Str("sid", string(s.ID)).Str("event", event).Msg("call event from system connection")
		return nil, false
	}
	if err := validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "orch.call").Str("sid", string(s.ID)).Str("event", event).Msg("invalid payload")
		return nil, false
	}
	return user, true
}

func (o *Orchestrator) CallInitiate(ctx context.Context, s *core.Session, p domain.CallInitiate) {
	user, ok := o.callActor(s, "call-initiate", p)
	if !ok || s.Closed() {
		return
	}
	now := o.now()
	id := domain.NewCallID(now)
	snap := o.Calls.Create(id, p.RoomID, p.CallType, domain.NewParticipant(user, now), s.ID)
	if s.Closed() {
		o.Calls.End(id)
		o.Metrics.SetCalls(o.Calls.Count())
		return
	}
	o.Metrics.SetCalls(o.Calls.Count())
	log.Info().Str("module", "orch.call").Str("call", string(id)).Str("room", string(p.RoomID)).
		Str("user", string(user.ID)).Str("type", string(p.CallType)).Msg("call initiated")

	durable := o.recordCallStart(ctx, snap)
	if durable != "" && !o.Calls.SetDurableID(id, durable) {
		// Ended while the record was written; nobody else can close it.
		snap.DurableID = durable
		o.closeCall(ctx, snap)
		log.Warn().Str("module", "orch.call").Str("call", string(id)).Msg("call ended before ringing")
		return
	}
	if _, live := o.Calls.Get(id); !live {
		return
	}

	payload := incomingCall{
		CallID:       id,
		RoomID:       p.RoomID,
		CallType:     p.CallType,
		CallerID:     user.ID,
		CallerName:   user.Name,
		CallerAvatar: user.Avatar,
	}

	if p.TargetUserID == "" {
		o.toRoom(p.RoomID, s.ID, "incoming-call", payload)
		return
	}

	target, ok := o.latestSession(p.TargetUserID)
	if !ok {
		if ended, removed := o.Calls.End(id); removed {
			o.closeCall(ctx, ended)
		}
		o.Metrics.SetCalls(o.Calls.Count())
		log.Warn().Str("module", "orch.call").Str("call", string(id)).Str("target", string(p.TargetUserID)).Msg("call target offline")
		return
	}
	o.emit(target, "incoming-call", payload)
}

func (o *Orchestrator) CallAccept(ctx context.Context, s *core.Session, p domain.CallAction) {
	o.joinCall(ctx, s, p, "call-accept")
}

func (o *Orchestrator) CallJoin(ctx context.Context, s *core.Session, p domain.CallAction) {
	o.joinCall(ctx, s, p, "call-join")
}

func (o *Orchestrator) joinCall(ctx context.Context, s *core.Session, p domain.CallAction, event string) {
	user, ok := o.callActor(s, event, p)
	if !ok || s.Closed() {
		return
	}
	now := o.now()
	snap, activated, ok := o.Calls.Join(p.CallID, domain.NewParticipant(user, now), s.ID)
	if !ok {
		log.Warn().Str("module", "orch.call").Str("call", string(p.CallID)).Str("event", event).Msg("call not found")
		return
	}
	if s.Closed() {
		for _, res := range o.Calls.LeaveSession(s.ID) {
			o.afterLeave(ctx, res)
		}
		return
	}

	if snap.DurableID != "" {
		sctx, cancel := o.storeCtx(ctx)
		if activated {
			if err := o.Store.UpdateCallSession(sctx, snap.DurableID, core.CallSessionPatch{Status: domain.CallStatusActive}); err != nil {
				o.storeFailed(err, "update_call_session", snap.ID)
			}
		}
		err := o.Store.CreateCallParticipant(sctx, core.CallParticipantRecord{
			CallSessionID: snap.DurableID,
			UserID:        user.ID,
			Status:        domain.ParticipantInCall,
			JoinedAt:      now,
		})
		cancel()
		if err != nil && !errors.Is(err, core.ErrDuplicate) {
			o.storeFailed(err, "create_call_participant", snap.ID)
		}
	}

	o.toRoom(snap.RoomID, "", "call-accepted", callUser{CallID: snap.ID, RoomID: snap.RoomID, UserID: user.ID, UserName: user.Name})
	o.toRoom(snap.RoomID, "", "call-joined", callRoster{
		CallID:       snap.ID,
		RoomID:       snap.RoomID,
		UserID:       user.ID,
		UserName:     user.Name,
		Participants: snap.ParticipantIDs(),
	})
}

func (o *Orchestrator) CallReject(ctx context.Context, s *core.Session, p domain.CallAction) {
	user, ok := o.callActor(s, "call-reject", p)
	if !ok {
		return
	}

	snap, known := o.Calls.Get(p.CallID)
	if _, removed := o.Calls.EndIfInitiator(p.CallID, user.ID); removed {
		o.Metrics.SetCalls(o.Calls.Count())
		log.Info().Str("module", "orch.call").Str("call", string(p.CallID)).Msg("initiator rejected call")
	}

	if known && snap.DurableID != "" {
		sctx, cancel := o.storeCtx(ctx)
		err := o.Store.UpdateCallSession(sctx, snap.DurableID, core.CallSessionPatch{Status: domain.CallStatusRejected})
		cancel()
		if err != nil {
			o.storeFailed(err, "update_call_session", p.CallID)
		}
	}

	o.toRoom(p.RoomID, "", "call-rejected", callUser{CallID: p.CallID, RoomID: p.RoomID, UserID: user.ID})
}

// CallEnd terminates the call whatever its participant count.
func (o *Orchestrator) CallEnd(ctx context.Context, s *core.Session, p domain.CallAction) {
	user, ok := o.callActor(s, "call-end", p)
	if !ok {
		return
	}

	snap, ok := o.Calls.End(p.CallID)
	if !ok {
		log.Warn().Str("module", "orch.call").Str("call", string(p.CallID)).Msg("call-end for unknown call")
		o.toRoom(p.RoomID, "", "call-ended", callEnded{CallID: p.CallID, RoomID: p.RoomID, EndedBy: user.ID})
		return
	}
	o.Metrics.SetCalls(o.Calls.Count())

	duration := o.closeCall(ctx, snap)
	o.toRoom(snap.RoomID, "", "call-ended", callEnded{CallID: snap.ID, RoomID: snap.RoomID, EndedBy: user.ID, Duration: duration})
}

// CallLeave removes the acting user; the last one out closes the call.
func (o *Orchestrator) CallLeave(ctx context.Context, s *core.Session, p domain.CallAction) {
	user, ok := o.callActor(s, "call-leave", p)
	if !ok {
		return
	}
	res, ok := o.Calls.Leave(p.CallID, user.ID)
	if !ok {
		log.Warn().Str("module", "orch.call").Str("call", string(p.CallID)).Msg("call-leave for unknown call")
		return
	}
	if !res.Removed {
		log.Debug().Str("module", "orch.call").Str("call", string(p.CallID)).Str("user", string(user.ID)).Msg("not a participant")
		return
	}
	o.afterLeave(ctx, res)
}

// afterLeave runs the durable and broadcast side of one participant removal.
func (o *Orchestrator) afterLeave(ctx context.Context, res app.CallLeft) {
	call := res.Call
	if call.DurableID != "" {
		left := o.now()
		sctx, cancel := o.storeCtx(ctx)
		err := o.Store.UpdateCallParticipants(sctx,
			core.ParticipantFilter{CallSessionID: call.DurableID, UserID: res.UserID},
			core.ParticipantPatch{Status: domain.ParticipantLeft, LeftAt: &left})
		cancel()
		if err != nil {
			o.storeFailed(err, "update_call_participants", call.ID)
		}
	}

	o.toRoom(call.RoomID, "", "call-left", callRoster{
		CallID:       call.ID,
		RoomID:       call.RoomID,
		UserID:       res.UserID,
		Participants: call.ParticipantIDs(),
	})

	if res.Ended {
		o.Metrics.SetCalls(o.Calls.Count())
		o.closeCall(ctx, call)
		log.Info().Str("module", "orch.call").Str("call", string(call.ID)).Msg("last participant left")
	}
}

// closeCall writes end-of-call accounting and returns the duration in
// seconds. The entry is already gone from the table.
func (o *Orchestrator) closeCall(ctx context.Context, call app.CallSnapshot) int64 {
	ended := o.now()
	duration := int64(ended.Sub(call.StartedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}
	if call.DurableID == "" {
		return duration
	}

	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	if err := o.Store.UpdateCallSession(sctx, call.DurableID, core.CallSessionPatch{
		Status:   domain.CallStatusEnded,
		EndedAt:  &ended,
		Duration: &duration,
	}); err != nil {
		o.storeFailed(err, "update_call_session", call.ID)
	}
	if err := o.Store.UpdateCallParticipants(sctx,
		core.ParticipantFilter{CallSessionID: call.DurableID, Status: domain.ParticipantInCall},
		core.ParticipantPatch{Status: domain.ParticipantLeft, LeftAt: &ended}); err != nil {
		o.storeFailed(err, "update_call_participants", call.ID)
	}
	return duration
}

func (o *Orchestrator) recordCallStart(ctx context.Context, call app.CallSnapshot) string {
	if o.Store == nil {
		return ""
	}
	sctx, cancel := o.storeCtx(ctx)
	defer cancel()
	durable, err := o.Store.CreateCallSession(sctx, core.CallSessionRecord{
		RoomID:      call.RoomID,
		CallType:    call.Type,
		InitiatorID: call.InitiatorID,
		Status:      domain.CallStatusRinging,
		StartedAt:   call.StartedAt,
	})
	if err != nil {
		o.storeFailed(err, "create_call_session", call.ID)
		return ""
	}
	if err := o.Store.CreateCallParticipant(sctx, core.CallParticipantRecord{
		CallSessionID: durable,
		UserID:        call.InitiatorID,
		Status:        domain.ParticipantInCall,
		JoinedAt:      call.StartedAt,
	}); err != nil && !errors.Is(err, core.ErrDuplicate) {
		o.storeFailed(err, "create_call_participant", call.ID)
	}
	return durable
}

func (o *Orchestrator) storeFailed(err error, op string, call domain.CallID) {
	o.Metrics.StoreError(op)
	log.Error().Err(err).Str("module", "orch.call").Str("call", string(call)).Str("op", op).Msg("store write failed")
}

func (o *Orchestrator) latestSession(uid domain.UserID) (*core.Session, bool) {
	sid, ok := o.Presence.LatestConnection(uid)
	if !ok {
		return nil, false
	}
	return o.Registry.GetSession(sid)
}

// WebRTCSignal forwards an opaque signal to one peer connection.
func (o *Orchestrator) WebRTCSignal(s *core.Session, p domain.WebRTCSignal) {
	user, ok := o.callActor(s, "webrtc-signal", p)
	if !ok {
		return
	}

	var target *core.Session
	if p.CallID != "" {
		if sid, bound := o.Calls.BoundSession(p.CallID, p.To); bound {
			target, _ = o.Registry.GetSession(sid)
		}
	}
	if target == nil {
		target, _ = o.latestSession(p.To)
	}
	if target == nil {
		log.Warn().Str("module", "orch.call").Str("call", string(p.CallID)).Str("to", string(p.To)).Msg("signal target not connected")
		return
	}
	o.emit(target, "webrtc-signal", relayedSignal{From: user.ID, Signal: p.Signal, CallID: p.CallID})
}
