package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	CallID   string
	CallType string
)

const (
	CallTypeVideo CallType = "video"
	CallTypeAudio CallType = "audio"
)

// CallState is the in-memory state of an active call.
type CallState string

const (
	CallRinging CallState = "ringing"
	CallActive  CallState = "active"
)

// Status values carried by the durable audit records.
const (
	CallStatusRinging  = "ringing"
	CallStatusActive   = "active"
	CallStatusEnded    = "ended"
	CallStatusRejected = "rejected"

	ParticipantInCall = "in-call"
	ParticipantLeft   = "left"
)

// NewCallID builds a timestamp plus random suffix id. Collisions are
// improbable, not impossible.
func NewCallID(now time.Time) CallID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return CallID(fmt.Sprintf("call_%d_%s", now.UnixMilli(), suffix))
}

type CallInitiate struct {
	RoomID       RoomID   `json:"roomId" validate:"required"`
	TargetUserID UserID   `json:"targetUserId,omitempty"`
	CallType     CallType `json:"callType" validate:"required,oneof=video audio"`
}

// CallAction is the payload of accept, reject, end, join and leave.
type CallAction struct {
	CallID CallID `json:"callId" validate:"required"`
	RoomID RoomID `json:"roomId" validate:"required"`
}

type WebRTCSignal struct {
	To     UserID          `json:"to" validate:"required"`
	Signal json.RawMessage `json:"signal" validate:"required"`
	CallID CallID          `json:"callId,omitempty"`
}

// CallToggle carries one in-call flag; which field is set depends on the event.
type CallToggle struct {
	CallID     CallID `json:"callId" validate:"required"`
	RoomID     RoomID `json:"roomId" validate:"required"`
	IsMuted    bool   `json:"isMuted"`
	IsVideoOff bool   `json:"isVideoOff"`
	IsSharing  bool   `json:"isSharing"`
	Raised     bool   `json:"raised"`
	Reaction   string `json:"reaction,omitempty"`
}
