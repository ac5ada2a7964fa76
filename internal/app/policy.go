package app

import (
	"sync"

	"github.com/dkeye/Spotlight/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case MarkSlow:
		return "mark_slow"
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what happens to a viewer whose signal queue is full.
type Policy interface {
	OnBackPressure(room core.RoomService, sid core.SessionID) BackpressureAction
	// OnDelivered resets any pressure accounting for sid.
	OnDelivered(sid core.SessionID)
	Forget(sid core.SessionID)
}

// DropCountPolicy tolerates MaxDrops consecutive dropped frames per viewer
// before kicking it.
type DropCountPolicy struct {
	MaxDrops int

	mu    sync.Mutex
	drops map[core.SessionID]int
}

func NewDropCountPolicy(maxDrops int) *DropCountPolicy {
	if maxDrops <= 0 {
		maxDrops = 1
	}
	return &DropCountPolicy{MaxDrops: maxDrops, drops: make(map[core.SessionID]int)}
}

func (p *DropCountPolicy) OnBackPressure(_ core.RoomService, sid core.SessionID) BackpressureAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drops[sid]++
	if p.drops[sid] >= p.MaxDrops {
		delete(p.drops, sid)
		return KickMember
	}
	return MarkSlow
}

func (p *DropCountPolicy) OnDelivered(sid core.SessionID) {
	p.mu.Lock()
	delete(p.drops, sid)
	p.mu.Unlock()
}

func (p *DropCountPolicy) Forget(sid core.SessionID) { p.OnDelivered(sid) }

// Drops returns the current consecutive drop count for sid.
func (p *DropCountPolicy) Drops(sid core.SessionID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drops[sid]
}
