package app

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
)

var errFull = errors.New("queue full")

type recSignal struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (r *recSignal) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return errFull
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *recSignal) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *recSignal) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func newUserSession(sid string, uid domain.UserID) (*core.Session, *recSignal) {
	sig := &recSignal{}
	s := core.NewSession(core.SessionID(sid), core.EndUser{User: domain.User{ID: uid, Name: string(uid)}}, sig, time.Unix(0, 0))
	return s, sig
}
