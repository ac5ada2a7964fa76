package app

import (
	"context"
	"sync"

	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	RoomName domain.RoomName
	Session  core.MemberSession
	Cancel   context.CancelFunc
	Stage    *spotlight.Loop
}

// Registry maps client sessions to their participant, room and stage loop.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[core.SessionID]*sessionEntry
	participants map[core.SessionID]*domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:     make(map[core.SessionID]*sessionEntry),
		participants: make(map[core.SessionID]*domain.Participant),
	}
}

// GetOrCreateParticipant returns the participant behind sid. The identity
// is the session id itself so it survives reconnects with the same cookie.
func (r *Registry) GetOrCreateParticipant(sid core.SessionID) *domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.participants[sid]; ok {
		return p
	}
	p := &domain.Participant{ID: sid.Identity(), Name: "guest"}
	r.participants[sid] = p
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created new participant")
	return p
}

func (r *Registry) UpdateName(sid core.SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[sid]
	if !ok {
		return nil
	}
	if err := p.SetName(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("name", name).Msg("updated name")
	return nil
}

func (r *Registry) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[sid]; ok && old.Cancel != nil {
		old.Cancel()
	}
	r.sessions[sid] = &sessionEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound signal")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind drops sid only while it still belongs to sess, so a stale
// connection cannot remove its replacement.
func (r *Registry) Unbind(sid core.SessionID, sess core.MemberSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok || (sess != nil && e.Session != sess) {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
	return true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomName, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.RoomName == "" {
		return "", nil, false
	}
	return entry.RoomName, entry.Session, true
}

func (r *Registry) UpdateRoom(sid core.SessionID, newRoom domain.RoomName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.RoomName = newRoom
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(newRoom)).Msg("updated room")
	return true
}

// RemoveRoom clears the room association and hands back the stage loop
// that belonged to it, if any.
func (r *Registry) RemoveRoom(sid core.SessionID) *spotlight.Loop {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	stage := entry.Stage
	entry.RoomName = ""
	entry.Stage = nil
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed room association")
	return stage
}

func (r *Registry) AttachStage(sid core.SessionID, stage *spotlight.Loop) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Stage = stage
	return true
}

func (r *Registry) StageOf(sid core.SessionID) (*spotlight.Loop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Stage == nil {
		return nil, false
	}
	return entry.Stage, true
}

type regSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

func (r *Registry) MembersOfRoom(name domain.RoomName) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomName == name {
			out = append(out, regSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
