package orch

import (
	"context"
	"strings"

	"github.com/dkeye/Spotlight/internal/app/sfu"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) BindMediaHandlers(mc core.MediaConnection, sid core.SessionID) {
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		o.OnTrack(trackCtx, sid, track)
	})
	mc.OnClosed(func() { o.OnMediaDisconnect(sid, mc) })
}

func (o *Orchestrator) OnMediaDisconnect(sid core.SessionID, mc core.MediaConnection) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok || sess.Media() != mc {
		return
	}
	o.cleanupMedia(sid)
}

func (o *Orchestrator) cleanupMedia(sid core.SessionID) {
	o.Relays.StopOwner(sid.Identity())
	if _, ok := o.Registry.StageOf(sid); ok {
		o.Relays.ReleaseStage(sid)
	} else {
		o.Relays.UnbindStage(sid)
	}

	if sess, ok := o.Registry.GetSession(sid); ok {
		if mc := sess.Media(); mc != nil {
			sess.UpdateMedia(nil)
			mc.Close()
		}
	}
}

// KindOf tells screen shares from cameras by the ids the client chose.
func KindOf(streamID, trackID string) domain.TrackKind {
	if strings.Contains(strings.ToLower(streamID), "screen") ||
		strings.Contains(strings.ToLower(trackID), "screen") {
		return domain.TrackScreen
	}
	return domain.TrackCamera
}

// OnTrack is called when a new remote media track appears for a given session.
func (o *Orchestrator) OnTrack(ctx context.Context, sid core.SessionID, track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("kind", track.Kind().String()).Msg("ignoring non-video track")
		return
	}
	kind := KindOf(track.StreamID(), track.ID())
	o.Publish(ctx, sid, kind, uint32(track.SSRC()), sfu.FromRemote(track))
}

// Publish starts relaying src and announces it to the room. The track is
// withdrawn from the room when the source ends.
func (o *Orchestrator) Publish(ctx context.Context, sid core.SessionID, kind domain.TrackKind, ssrc uint32, src sfu.Source) (*domain.Track, bool) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("publish: no room for sid")
		return nil, false
	}
	room, ok := o.Rooms.GetRoom(roomName)
	if !ok {
		return nil, false
	}
	if old, ok := room.UnpublishTrack(sid, kind); ok {
		o.Relays.StopRelay(old.ID)
	}

	t := domain.NewTrack(sid.Identity(), kind)
	o.Relays.StartRelay(ctx, t, ssrc, src, func() {
		if room.UnpublishByID(t.ID) {
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("track", string(t.ID)).Msg("source ended, track withdrawn")
		}
	})
	if !room.PublishTrack(sid, t) {
		o.Relays.StopRelay(t.ID)
		return nil, false
	}
	return t, true
}

// Unpublish withdraws sid's track of kind, e.g. when a share is stopped
// from the UI before the browser ends the track.
func (o *Orchestrator) Unpublish(sid core.SessionID, kind domain.TrackKind) bool {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	room, ok := o.Rooms.GetRoom(roomName)
	if !ok {
		return false
	}
	t, ok := room.UnpublishTrack(sid, kind)
	if !ok {
		return false
	}
	o.Relays.StopRelay(t.ID)
	return true
}

// StageBinding describes the viewer's outgoing stage track and what feeds it.
type StageBinding struct {
	TrackID  string
	StreamID string
	Source   domain.TrackID
}

// OnMediaReady is called when MediaConnection is attached to the session
// (offer/answer done). The viewer's stage output starts receiving media.
func (o *Orchestrator) OnMediaReady(sid core.SessionID) (StageBinding, bool) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return StageBinding{}, false
	}
	mc := sess.Media()
	if mc == nil {
		return StageBinding{}, false
	}
	out := mc.StageTrack()
	if out == nil {
		return StageBinding{}, false
	}
	o.Relays.BindStage(sid, out)
	b := StageBinding{TrackID: out.ID(), StreamID: out.StreamID()}
	b.Source, _ = o.Relays.StageSource(sid)
	return b, true
}
