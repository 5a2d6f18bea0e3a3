package app

import "github.com/dkeye/chatrelay/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(s *core.Session) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Session) BackpressureAction {
	return KickMember
}

// TolerantPolicy only drops the frame; the connection stays.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(*core.Session) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the backpressure config value to a Policy; anything
// but "drop" kicks.
func PolicyByName(name string) Policy {
	if name == "drop" {
		return TolerantPolicy{}
	}
	return SimplePolicy{}
}
