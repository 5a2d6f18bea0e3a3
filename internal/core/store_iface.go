package core

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/chatrelay/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate record")
)

type CallSessionRecord struct {
	RoomID      domain.RoomID
	CallType    domain.CallType
	InitiatorID domain.UserID
	Status      string
	StartedAt   time.Time
}

// CallSessionPatch updates only the non-zero fields.
type CallSessionPatch struct {
	Status   string
	EndedAt  *time.Time
	Duration *int64 // seconds
}

type CallParticipantRecord struct {
	CallSessionID string
	UserID        domain.UserID
	Status        string
	JoinedAt      time.Time
}

// ParticipantFilter selects participant records of one call session; empty
// fields match everything.
type ParticipantFilter struct {
	CallSessionID string
	UserID        domain.UserID
	Status        string
}

type ParticipantPatch struct {
	Status string
	LeftAt *time.Time
}

// Store is the narrow durable collaborator the relay consumes. Every call may
// suspend; none of them is authoritative for in-memory state.
type Store interface {
	FindUserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	CreateCallSession(ctx context.Context, rec CallSessionRecord) (string, error)
	UpdateCallSession(ctx context.Context, id string, patch CallSessionPatch) error
	CreateCallParticipant(ctx context.Context, rec CallParticipantRecord) error
	UpdateCallParticipants(ctx context.Context, filter ParticipantFilter, patch ParticipantPatch) error
}
