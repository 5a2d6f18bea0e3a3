package store

import (
	"time"

	"github.com/dkeye/chatrelay/internal/domain"
)

type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Avatar    string
	Status    string `gorm:"not null;default:active"`
	Role      string
	CreatedAt time.Time
}

func (UserModel) TableName() string { return "users" }

func (m UserModel) toDomain() *domain.User {
	return &domain.User{
		ID:     domain.UserID(m.ID),
		Name:   m.Name,
		Avatar: m.Avatar,
		Status: m.Status,
		Role:   m.Role,
	}
}

type CallSessionModel struct {
	ID          string `gorm:"primaryKey"`
	RoomID      string `gorm:"not null;index"`
	CallType    string `gorm:"not null"`
	InitiatorID string `gorm:"not null;index"`
	Status      string `gorm:"not null"`
	StartedAt   time.Time
	EndedAt     *time.Time
	Duration    *int64
}

func (CallSessionModel) TableName() string { return "call_sessions" }

type CallParticipantModel struct {
	ID            uint   `gorm:"primaryKey"`
	CallSessionID string `gorm:"not null;uniqueIndex:idx_call_participant"`
	UserID        string `gorm:"not null;uniqueIndex:idx_call_participant"`
	Status        string `gorm:"not null"`
	JoinedAt      time.Time
	LeftAt        *time.Time
}

func (CallParticipantModel) TableName() string { return "call_participants" }
