package core

import (
	"slices"
	"sync"

	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

type memberEntry struct {
	session MemberSession
	camera  *domain.Track
	screen  *domain.Track
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
// All fan-out happens under mu so every viewer sees the same event order.
type roomImpl struct {
	room *domain.Room

	mu       sync.Mutex
	order    []SessionID
	members  map[SessionID]*memberEntry
	speaking []domain.Identity
	viewers  map[SessionID]EventSink
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:    room,
		members: make(map[SessionID]*memberEntry),
		viewers: make(map[SessionID]EventSink),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *roomImpl) Member(sid SessionID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.members[sid]
	if !ok {
		return nil, false
	}
	return e.session, true
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	p := ms.Meta().Participant
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.members[sid]; ok {
		e.session = ms
	} else {
		r.members[sid] = &memberEntry{session: ms}
		r.order = append(r.order, sid)
	}
	r.fanout(ParticipantConnected{ID: sid.Identity(), Name: p.Name})
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(sid)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[sid]; !ok {
		return false
	}
	delete(r.members, sid)
	delete(r.viewers, sid)
	r.order = slices.DeleteFunc(r.order, func(s SessionID) bool { return s == sid })
	r.speaking = slices.DeleteFunc(r.speaking, func(id domain.Identity) bool { return id == sid.Identity() })
	r.fanout(ParticipantDisconnected{ID: sid.Identity()})
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(sid)).Msg("member removed")
	return true
}

func (r *roomImpl) Rename(sid SessionID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.members[sid]
	if !ok {
		return nil
	}
	p := e.session.Meta().Participant
	if err := p.SetName(name); err != nil {
		return err
	}
	r.fanout(ParticipantConnected{ID: sid.Identity(), Name: p.Name})
	return nil
}

func (r *roomImpl) PublishTrack(sid SessionID, track *domain.Track) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.members[sid]
	if !ok {
		log.Warn().Str("module", "core.room").Str("sid", string(sid)).Msg("publish from non-member ignored")
		return false
	}
	track.Owner = sid.Identity()
	if track.Kind == domain.TrackScreen {
		e.screen = track
	} else {
		e.camera = track
	}
	r.fanout(TrackAvailable(track))
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("kind", track.Kind.String()).Str("track", string(track.ID)).Msg("track published")
	return true
}

func (r *roomImpl) UnpublishTrack(sid SessionID, kind domain.TrackKind) (*domain.Track, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unpublishLocked(sid, kind)
}

func (r *roomImpl) UnpublishByID(id domain.TrackID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, e := range r.members {
		if e.camera != nil && e.camera.ID == id {
			_, ok := r.unpublishLocked(sid, domain.TrackCamera)
			return ok
		}
		if e.screen != nil && e.screen.ID == id {
			_, ok := r.unpublishLocked(sid, domain.TrackScreen)
			return ok
		}
	}
	return false
}

func (r *roomImpl) unpublishLocked(sid SessionID, kind domain.TrackKind) (*domain.Track, bool) {
	e, ok := r.members[sid]
	if !ok {
		return nil, false
	}
	slot := &e.camera
	if kind == domain.TrackScreen {
		slot = &e.screen
	}
	t := *slot
	if t == nil {
		return nil, false
	}
	*slot = nil
	r.fanout(TrackRemoved(sid.Identity(), kind))
	log.Info().Str("module", "core.room").Str("sid", string(sid)).Str("kind", kind.String()).Msg("track unpublished")
	return t, true
}

func (r *roomImpl) SetSpeaking(sid SessionID, speaking bool) {
	id := sid.Identity()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[sid]; !ok {
		return
	}
	idx := slices.Index(r.speaking, id)
	switch {
	case speaking && idx < 0:
		r.speaking = append(r.speaking, id)
	case !speaking && idx >= 0:
		r.speaking = slices.Delete(r.speaking, idx, idx+1)
	default:
		return
	}
	r.members[sid].session.Meta().Speaking = speaking
	r.fanout(ActiveSpeakersChanged{IDs: slices.Clone(r.speaking)})
}

func (r *roomImpl) Subscribe(sid SessionID, sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewers[sid] = sink
	for _, msid := range r.order {
		e := r.members[msid]
		sink.Post(ParticipantConnected{ID: msid.Identity(), Name: e.session.Meta().Participant.Name})
		if e.camera != nil {
			sink.Post(TrackAvailable(e.camera))
		}
		if e.screen != nil {
			sink.Post(TrackAvailable(e.screen))
		}
	}
	if len(r.speaking) > 0 {
		sink.Post(ActiveSpeakersChanged{IDs: slices.Clone(r.speaking)})
	}
	log.Debug().Str("module", "core.room").Str("sid", string(sid)).Int("members", len(r.order)).Msg("viewer subscribed")
}

func (r *roomImpl) Unsubscribe(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.viewers, sid)
}

func (r *roomImpl) fanout(ev Event) {
	for sid, v := range r.viewers {
		if !v.Post(ev) {
			delete(r.viewers, sid)
			log.Debug().Str("module", "core.room").Str("sid", string(sid)).Msg("dropped stopped viewer")
		}
	}
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}
	for _, sid := range r.order {
		if sid == from {
			continue
		}
		sig := r.members[sid].session.Signal()
		if sig == nil {
			continue
		}
		if err := sig.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberDTO, 0, len(r.order))
	for _, sid := range r.order {
		e := r.members[sid]
		m := e.session.Meta()
		dto := MemberDTO{ID: m.Participant.ID, Name: m.Participant.Name, Speaking: m.Speaking}
		if e.camera != nil {
			dto.Camera = e.camera.ID
		}
		if e.screen != nil {
			dto.Screen = e.screen.ID
		}
		out = append(out, dto)
	}
	return out
}
