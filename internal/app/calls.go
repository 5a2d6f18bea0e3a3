package app

import (
	"sync"
	"time"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

type callSlot struct {
	domain.Participant
	SID core.SessionID
}

type activeCall struct {
	id          domain.CallID
	roomID      domain.RoomID
	callType    domain.CallType
	initiatorID domain.UserID
	startedAt   time.Time
	state       domain.CallState
	durableID   string
	slots       []callSlot
}

// CallSnapshot is a copy of one call taken under the table lock.
type CallSnapshot struct {
	ID           domain.CallID
	RoomID       domain.RoomID
	Type         domain.CallType
	InitiatorID  domain.UserID
	StartedAt    time.Time
	State        domain.CallState
	DurableID    string
	Participants []domain.Participant
}

func (c CallSnapshot) ParticipantIDs() []domain.UserID {
	out := make([]domain.UserID, 0, len(c.Participants))
	for _, p := range c.Participants {
		out = append(out, p.UserID)
	}
	return out
}

func (c *activeCall) snapshot() CallSnapshot {
	ps := make([]domain.Participant, 0, len(c.slots))
	for _, s := range c.slots {
		ps = append(ps, s.Participant)
	}
	return CallSnapshot{
		ID:           c.id,
		RoomID:       c.roomID,
		Type:         c.callType,
		InitiatorID:  c.initiatorID,
		StartedAt:    c.startedAt,
		State:        c.state,
		DurableID:    c.durableID,
		Participants: ps,
	}
}

func (c *activeCall) indexOf(uid domain.UserID) int {
	for i, s := range c.slots {
		if s.UserID == uid {
			return i
		}
	}
	return -1
}

// CallLeft describes one participant removal.
type CallLeft struct {
	Call    CallSnapshot
	UserID  domain.UserID
	Removed bool
	// Ended is set when the removal emptied the call and dropped its entry.
	Ended bool
}

// CallTable is the authoritative in-memory set of ongoing calls. Every
// participant is bound to the connection it joined from.
type CallTable struct {
	mu    sync.Mutex
	calls map[domain.CallID]*activeCall
}

func NewCallTable() *CallTable {
	return &CallTable{calls: make(map[domain.CallID]*activeCall)}
}

// Create registers a ringing call with the initiator as its only participant.
func (t *CallTable) Create(id domain.CallID, room domain.RoomID, ct domain.CallType, initiator domain.Participant, sid core.SessionID) CallSnapshot {
	c := &activeCall{
		id:          id,
		roomID:      room,
		callType:    ct,
		initiatorID: initiator.UserID,
		startedAt:   initiator.JoinedAt,
		state:       domain.CallRinging,
		slots:       []callSlot{{Participant: initiator, SID: sid}},
	}
	t.mu.Lock()
	t.calls[id] = c
	t.mu.Unlock()
	return c.snapshot()
}

func (t *CallTable) Get(id domain.CallID) (CallSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return CallSnapshot{}, false
	}
	return c.snapshot(), true
}

func (t *CallTable) SetDurableID(id domain.CallID, durable string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return false
	}
	c.durableID = durable
	return true
}

// Join adds p bound to sid (or rebinds an existing participant) and makes
// the call active. activated reports the ringing -> active transition.
func (t *CallTable) Join(id domain.CallID, p domain.Participant, sid core.SessionID) (snap CallSnapshot, activated bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return CallSnapshot{}, false, false
	}
	if i := c.indexOf(p.UserID); i >= 0 {
		c.slots[i].SID = sid
	} else {
		c.slots = append(c.slots, callSlot{Participant: p, SID: sid})
	}
	if c.state == domain.CallRinging {
		c.state = domain.CallActive
		activated = true
	}
	return c.snapshot(), activated, true
}

// Leave removes uid. When that empties the call the entry is dropped in the
// same critical section.
func (t *CallTable) Leave(id domain.CallID, uid domain.UserID) (CallLeft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return CallLeft{}, false
	}
	return t.removeLocked(c, c.indexOf(uid), uid), true
}

func (t *CallTable) removeLocked(c *activeCall, i int, uid domain.UserID) CallLeft {
	res := CallLeft{UserID: uid}
	if i >= 0 {
		c.slots = append(c.slots[:i], c.slots[i+1:]...)
		res.Removed = true
	}
	if len(c.slots) == 0 {
		delete(t.calls, c.id)
		res.Ended = true
	}
	res.Call = c.snapshot()
	return res
}

// LeaveSession removes every participant bound to sid, across all calls.
func (t *CallTable) LeaveSession(sid core.SessionID) []CallLeft {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []CallLeft
	for _, c := range t.calls {
		for i := len(c.slots) - 1; i >= 0; i-- {
			if c.slots[i].SID != sid {
				continue
			}
			out = append(out, t.removeLocked(c, i, c.slots[i].UserID))
			if _, still := t.calls[c.id]; !still {
				break
			}
		}
	}
	return out
}

// End drops the call entry.
func (t *CallTable) End(id domain.CallID) (CallSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return CallSnapshot{}, false
	}
	delete(t.calls, id)
	return c.snapshot(), true
}

// EndIfInitiator drops the call only when uid started it.
func (t *CallTable) EndIfInitiator(id domain.CallID, uid domain.UserID) (CallSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok || c.initiatorID != uid {
		return CallSnapshot{}, false
	}
	delete(t.calls, id)
	return c.snapshot(), true
}

// BoundSession returns the connection uid joined call id from.
func (t *CallTable) BoundSession(id domain.CallID, uid domain.UserID) (core.SessionID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.calls[id]
	if !ok {
		return "", false
	}
	if i := c.indexOf(uid); i >= 0 {
		return c.slots[i].SID, true
	}
	return "", false
}

func (t *CallTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
