package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/stretchr/testify/require"
)

var errClosed = errors.New("closed")

// recSignal records every queued frame.
type recSignal struct {
	mu     sync.Mutex
	frames []core.Envelope
	closed bool
}

func (r *recSignal) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errClosed
	}
	var env core.Envelope
	if err := json.Unmarshal(f, &env); err != nil {
		return err
	}
	r.frames = append(r.frames, env)
	return nil
}

func (r *recSignal) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recSignal) events(event string) []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []json.RawMessage
	for _, f := range r.frames {
		if f.Type == event {
			out = append(out, f.Data)
		}
	}
	return out
}

func (r *recSignal) count(event string) int { return len(r.events(event)) }

func (r *recSignal) reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

type storeCall struct {
	op     string
	id     string
	filter core.ParticipantFilter
	status string
}

// fakeStore keeps just enough state to check what the relay wrote.
type fakeStore struct {
	mu      sync.Mutex
	seq     int
	calls   []storeCall
	seen    map[string]bool
	failOps map[string]bool

	// onCreateSession runs once inside the next CreateCallSession.
	onCreateSession func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]bool{}, failOps: map[string]bool{}}
}

func (f *fakeStore) record(c storeCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failOps[c.op] {
		return errors.New("store down")
	}
	return nil
}

func (f *fakeStore) failing(op string) {
	f.mu.Lock()
	f.failOps[op] = true
	f.mu.Unlock()
}

func (f *fakeStore) ops(op string) []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storeCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) FindUserByID(context.Context, domain.UserID) (*domain.User, error) {
	return nil, core.ErrNotFound
}

func (f *fakeStore) CreateCallSession(_ context.Context, rec core.CallSessionRecord) (string, error) {
	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("cs-%d", f.seq)
	hook := f.onCreateSession
	f.onCreateSession = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := f.record(storeCall{op: "create_session", id: id, status: rec.Status}); err != nil {
		return "", err
	}
	return id, nil
}

func (f *fakeStore) UpdateCallSession(_ context.Context, id string, patch core.CallSessionPatch) error {
	return f.record(storeCall{op: "update_session", id: id, status: patch.Status})
}

func (f *fakeStore) CreateCallParticipant(_ context.Context, rec core.CallParticipantRecord) error {
	key := rec.CallSessionID + "/" + string(rec.UserID)
	f.mu.Lock()
	dup := f.seen[key]
	f.seen[key] = true
	f.mu.Unlock()
	if err := f.record(storeCall{op: "create_participant", id: rec.CallSessionID}); err != nil {
		return err
	}
	if dup {
		return core.ErrDuplicate
	}
	return nil
}

func (f *fakeStore) UpdateCallParticipants(_ context.Context, filter core.ParticipantFilter, patch core.ParticipantPatch) error {
	return f.record(storeCall{op: "update_participants", id: filter.CallSessionID, filter: filter, status: patch.Status})
}

type harness struct {
	o     *Orchestrator
	clk   *clock.Mock
	store *fakeStore
	n     int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	st := newFakeStore()
	return &harness{
		clk:   clk,
		store: st,
		o: &Orchestrator{
			Registry:       app.NewRegistry(),
			Presence:       app.NewPresence(),
			Rooms:          app.NewRoomManager(),
			Calls:          app.NewCallTable(),
			Limits:         app.NewRateLimiterBank(clk, app.DefaultQuotas()),
			Policy:         app.SimplePolicy{},
			Store:          st,
			Clock:          clk,
			StoreTimeout:   time.Second,
			OnlineDebounce: time.Second,
		},
	}
}

func (h *harness) connect(uid domain.UserID) (*core.Session, *recSignal) {
	h.n++
	sig := &recSignal{}
	var p core.Principal = core.SystemRelay{}
	if uid != "" {
		p = core.EndUser{User: domain.User{ID: uid, Name: "name-" + string(uid), Avatar: string(uid) + ".png"}}
	}
	s := core.NewSession(core.SessionID(fmt.Sprintf("s%d", h.n)), p, sig, h.clk.Now())
	h.o.Connect(s)
	return s, sig
}

// online connects and declares presence.
func (h *harness) online(uid domain.UserID) (*core.Session, *recSignal) {
	s, sig := h.connect(uid)
	h.o.UserConnect(s, uid)
	return s, sig
}

func (h *harness) joined(t *testing.T, uid domain.UserID, room domain.RoomID) (*core.Session, *recSignal) {
	t.Helper()
	s, sig := h.online(uid)
	h.o.JoinRoom(s, room)
	require.True(t, s.InRoom(room))
	sig.reset()
	return s, sig
}

func decodeAs[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type ackRec struct {
	got []core.AckResponse
}

func (a *ackRec) fn() core.Ack {
	return func(r core.AckResponse) { a.got = append(a.got, r) }
}

func (a *ackRec) last() core.AckResponse {
	if len(a.got) == 0 {
		return core.AckResponse{}
	}
	return a.got[len(a.got)-1]
}
