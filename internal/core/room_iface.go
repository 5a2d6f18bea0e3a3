package core

import (
	"github.com/dkeye/chatrelay/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []*Session
}

// RoomService is one room's broadcast group.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int

	AddMember(s *Session) bool
	RemoveMember(sid SessionID) bool
	// Broadcast sends to every member except the one named; an empty except
	// reaches the whole room.
	Broadcast(except SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}

// Fanout maps connections to rooms and delivers room broadcasts. The
// in-process implementation lives in app; a pub/sub-backed one reaching other
// relay instances satisfies the same contract.
type Fanout interface {
	Join(s *Session, room domain.RoomID) bool
	Leave(s *Session, room domain.RoomID) bool
	LeaveAll(s *Session)
	ToRoom(room domain.RoomID, except SessionID, data Frame) PublishResult
	List() []RoomInfo
}
