package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLStore keeps users and the call audit trail in sqlite.
type SQLStore struct {
	db *gorm.DB
}

var _ core.Store = (*SQLStore)(nil)

func Open(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}

	if err := db.AutoMigrate(&UserModel{}, &CallSessionModel{}, &CallParticipantModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Str("module", "adapters.store").Str("dsn", dsn).Msg("store ready")
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) SaveUser(ctx context.Context, u domain.User) error {
	m := UserModel{
		ID:     string(u.ID),
		Name:   u.Name,
		Avatar: u.Avatar,
		Status: u.Status,
		Role:   u.Role,
	}
	if m.Status == "" {
		m.Status = domain.UserStatusActive
	}
	return s.db.WithContext(ctx).Save(&m).Error
}

func (s *SQLStore) FindUserByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var m UserModel
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

func (s *SQLStore) CreateCallSession(ctx context.Context, rec core.CallSessionRecord) (string, error) {
	m := CallSessionModel{
		ID:          uuid.NewString(),
		RoomID:      string(rec.RoomID),
		CallType:    string(rec.CallType),
		InitiatorID: string(rec.InitiatorID),
		Status:      rec.Status,
		StartedAt:   rec.StartedAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *SQLStore) UpdateCallSession(ctx context.Context, id string, patch core.CallSessionPatch) error {
	fields := map[string]any{}
	if patch.Status != "" {
		fields["status"] = patch.Status
	}
	if patch.EndedAt != nil {
		fields["ended_at"] = *patch.EndedAt
	}
	if patch.Duration != nil {
		fields["duration"] = *patch.Duration
	}
	if len(fields) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&CallSessionModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("call session %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) CreateCallParticipant(ctx context.Context, rec core.CallParticipantRecord) error {
	m := CallParticipantModel{
		CallSessionID: rec.CallSessionID,
		UserID:        string(rec.UserID),
		Status:        rec.Status,
		JoinedAt:      rec.JoinedAt,
	}
	err := s.db.WithContext(ctx).Create(&m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return core.ErrDuplicate
	}
	return err
}

func (s *SQLStore) UpdateCallParticipants(ctx context.Context, f core.ParticipantFilter, patch core.ParticipantPatch) error {
	fields := map[string]any{}
	if patch.Status != "" {
		fields["status"] = patch.Status
	}
	if patch.LeftAt != nil {
		fields["left_at"] = *patch.LeftAt
	}
	if len(fields) == 0 {
		return nil
	}

	q := s.db.WithContext(ctx).Model(&CallParticipantModel{}).Where("call_session_id = ?", f.CallSessionID)
	if f.UserID != "" {
		q = q.Where("user_id = ?", string(f.UserID))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q.Updates(fields).Error
}

// Participants lists the audit records of one call session.
func (s *SQLStore) Participants(ctx context.Context, callSessionID string) ([]CallParticipantModel, error) {
	var out []CallParticipantModel
	err := s.db.WithContext(ctx).Where("call_session_id = ?", callSessionID).Order("id").Find(&out).Error
	return out, err
}

func (s *SQLStore) CallSession(ctx context.Context, id string) (*CallSessionModel, error) {
	var m CallSessionModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrNotFound
	}
	return &m, err
}
