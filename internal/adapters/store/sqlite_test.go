package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFindUserByID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id := domain.UserID(uuid.NewString())

	_, err := s.FindUserByID(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.SaveUser(ctx, domain.User{ID: id, Name: "ana", Avatar: "a.png"}))
	u, err := s.FindUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Name)
	assert.Equal(t, domain.UserStatusActive, u.Status)
	assert.False(t, u.Banned())
}

func TestCallAuditTrail(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := s.CreateCallSession(ctx, core.CallSessionRecord{
		RoomID:      "room-1",
		CallType:    domain.CallTypeVideo,
		InitiatorID: "u1",
		Status:      domain.CallStatusRinging,
		StartedAt:   start,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	for _, uid := range []domain.UserID{"u1", "u2"} {
		require.NoError(t, s.CreateCallParticipant(ctx, core.CallParticipantRecord{
			CallSessionID: id, UserID: uid, Status: domain.ParticipantInCall, JoinedAt: start,
		}))
	}
	err = s.CreateCallParticipant(ctx, core.CallParticipantRecord{
		CallSessionID: id, UserID: "u2", Status: domain.ParticipantInCall, JoinedAt: start,
	})
	assert.ErrorIs(t, err, core.ErrDuplicate)

	left := start.Add(30 * time.Second)
	require.NoError(t, s.UpdateCallParticipants(ctx,
		core.ParticipantFilter{CallSessionID: id, UserID: "u2"},
		core.ParticipantPatch{Status: domain.ParticipantLeft, LeftAt: &left}))

	ended := start.Add(time.Minute)
	dur := int64(60)
	require.NoError(t, s.UpdateCallSession(ctx, id, core.CallSessionPatch{
		Status: domain.CallStatusEnded, EndedAt: &ended, Duration: &dur,
	}))
	require.NoError(t, s.UpdateCallParticipants(ctx,
		core.ParticipantFilter{CallSessionID: id, Status: domain.ParticipantInCall},
		core.ParticipantPatch{Status: domain.ParticipantLeft, LeftAt: &ended}))

	sess, err := s.CallSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusEnded, sess.Status)
	require.NotNil(t, sess.Duration)
	assert.Equal(t, int64(60), *sess.Duration)

	ps, err := s.Participants(ctx, id)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	for _, p := range ps {
		assert.Equal(t, domain.ParticipantLeft, p.Status)
		require.NotNil(t, p.LeftAt)
	}
	assert.True(t, ps[0].LeftAt.Equal(ended), "u1 left at end of call")
	assert.True(t, ps[1].LeftAt.Equal(left), "u2 keeps its own leave time")
}

func TestUpdateUnknownCallSession(t *testing.T) {
	s := openTemp(t)
	err := s.UpdateCallSession(context.Background(), "missing", core.CallSessionPatch{Status: domain.CallStatusEnded})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
