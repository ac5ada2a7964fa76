package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/rtcp"
	"github.com/rs/zerolog/log"
)

// KeyframeFunc asks the publisher owning a track for a fresh keyframe.
type KeyframeFunc func(owner domain.Identity, pkts []rtcp.Packet)

type viewerStage struct {
	out  *OutTrack
	want domain.TrackID
}

// RelayManager owns one relay per published track and routes each
// viewer's stage output to the relay its stage currently shows.
type RelayManager struct {
	mu      sync.RWMutex
	relays  map[domain.TrackID]*Relay
	viewers map[core.SessionID]*viewerStage

	keyframe KeyframeFunc
}

func NewRelayManager(keyframe KeyframeFunc) *RelayManager {
	return &RelayManager{
		relays:   make(map[domain.TrackID]*Relay),
		viewers:  make(map[core.SessionID]*viewerStage),
		keyframe: keyframe,
	}
}

// PLI builds a picture loss indication for ssrc.
func PLI(ssrc uint32) []rtcp.Packet {
	return []rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}
}

// StartRelay creates a Relay for track and starts its loop. onEnd runs once
// the source stops delivering packets.
func (m *RelayManager) StartRelay(ctx context.Context, track *domain.Track, ssrc uint32, src Source, onEnd func()) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("owner", string(track.Owner)).
		Str("track", string(track.ID)).
		Str("kind", track.Kind.String()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, ssrc, src, cancel)

	var attach []core.SessionID
	m.mu.Lock()
	if old, ok := m.relays[track.ID]; ok {
		logger.Info().Msg("replacing existing relay for track")
		old.detachAll()
		old.cancel()
	}
	m.relays[track.ID] = relay
	for sid, v := range m.viewers {
		if v.want == track.ID && v.out != nil {
			v.out.Switch(track.ID)
			relay.AddOutTrack(sid, v.out)
			attach = append(attach, sid)
		}
	}
	m.mu.Unlock()

	logger.Info().Int("waiting_viewers", len(attach)).Msg("starting relay loop")

	go func() {
		relay.loop(relayCtx, &logger)
		m.remove(relay)
		if onEnd != nil {
			onEnd()
		}
	}()
	if len(attach) > 0 {
		m.requestKeyframe(relay)
	}
	return relay
}

func (m *RelayManager) remove(relay *Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relays[relay.Track.ID] == relay {
		delete(m.relays, relay.Track.ID)
	}
}

// StopRelay stops the relay for id. Its onEnd callback still runs once the
// source read returns.
func (m *RelayManager) StopRelay(id domain.TrackID) {
	m.mu.Lock()
	relay, ok := m.relays[id]
	if ok {
		delete(m.relays, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.detachAll()
	relay.cancel()
}

// StopOwner stops every relay published by owner.
func (m *RelayManager) StopOwner(owner domain.Identity) {
	m.mu.RLock()
	var ids []domain.TrackID
	for id, r := range m.relays {
		if r.Track.Owner == owner {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.StopRelay(id)
	}
}

// HasRelay reports whether a relay exists for id.
func (m *RelayManager) HasRelay(id domain.TrackID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[id]
	return ok
}

func (m *RelayManager) Relay(id domain.TrackID) (*Relay, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.relays[id]
	return r, ok
}

func (m *RelayManager) viewer(sid core.SessionID) *viewerStage {
	v, ok := m.viewers[sid]
	if !ok {
		v = &viewerStage{}
		m.viewers[sid] = v
	}
	return v
}

// OpenStage registers a viewer so stage selections made before its media is
// bound are remembered.
func (m *RelayManager) OpenStage(viewer core.SessionID) {
	m.mu.Lock()
	m.viewer(viewer)
	m.mu.Unlock()
}

// BindStage attaches the viewer's stage output. If a stage selection was
// made before media was ready it takes effect now.
func (m *RelayManager) BindStage(viewer core.SessionID, w RTPWriter) {
	m.mu.Lock()
	v := m.viewer(viewer)
	if v.out != nil {
		m.detachLocked(viewer, v.want)
	}
	v.out = NewOutTrack(w)
	relay := m.attachLocked(viewer, v)
	m.mu.Unlock()
	if relay != nil {
		m.requestKeyframe(relay)
	}
}

// UnbindStage forgets the viewer entirely.
func (m *RelayManager) UnbindStage(viewer core.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.viewers[viewer]; ok {
		m.detachLocked(viewer, v.want)
		delete(m.viewers, viewer)
	}
}

// ReleaseStage drops the viewer's stage output but keeps its selection for
// the next BindStage.
func (m *RelayManager) ReleaseStage(viewer core.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.viewers[viewer]; ok {
		m.detachLocked(viewer, v.want)
		v.out = nil
	}
}

// SetStage routes the viewer's stage output to the relay of id. Viewers
// that were never opened or bound are ignored.
func (m *RelayManager) SetStage(viewer core.SessionID, id domain.TrackID) {
	m.mu.Lock()
	v, ok := m.viewers[viewer]
	if !ok {
		m.mu.Unlock()
		return
	}
	if v.want == id && v.out != nil && v.out.Source() == id {
		m.mu.Unlock()
		return
	}
	m.detachLocked(viewer, v.want)
	v.want = id
	relay := m.attachLocked(viewer, v)
	m.mu.Unlock()
	if relay != nil {
		m.requestKeyframe(relay)
	}
}

// ClearStage stops feeding the viewer's stage output.
func (m *RelayManager) ClearStage(viewer core.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.viewers[viewer]
	if !ok {
		return
	}
	m.detachLocked(viewer, v.want)
	v.want = ""
	if v.out != nil {
		v.out.Switch("")
	}
}

// Viewers returns how many viewers have a stage entry.
func (m *RelayManager) Viewers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.viewers)
}

// StageSource returns the track currently feeding the viewer's stage.
func (m *RelayManager) StageSource(viewer core.SessionID) (domain.TrackID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.viewers[viewer]
	if !ok || v.out == nil || v.want == "" {
		return "", false
	}
	if _, live := m.relays[v.want]; !live {
		return "", false
	}
	return v.want, true
}

func (m *RelayManager) detachLocked(viewer core.SessionID, id domain.TrackID) {
	if id == "" {
		return
	}
	if r, ok := m.relays[id]; ok {
		r.RemoveOutTrack(viewer)
	}
}

func (m *RelayManager) attachLocked(viewer core.SessionID, v *viewerStage) *Relay {
	if v.out == nil || v.want == "" {
		return nil
	}
	r, ok := m.relays[v.want]
	if !ok {
		return nil
	}
	v.out.Switch(v.want)
	r.AddOutTrack(viewer, v.out)
	return r
}

func (m *RelayManager) requestKeyframe(r *Relay) {
	if m.keyframe == nil || r.SSRC == 0 {
		return
	}
	m.keyframe(r.Track.Owner, PLI(r.SSRC))
}
