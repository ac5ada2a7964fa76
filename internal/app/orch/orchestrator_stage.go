package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNotInRoom = errors.New("not in a room")

// startStage gives sid its own stage loop, fed by the room.
func (o *Orchestrator) startStage(sid core.SessionID, room core.RoomService) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	sink := core.MultiSink{
		&mediaSink{sid: sid, relays: o.Relays},
		&signalSink{sid: sid, sess: sess, onDrop: func(sid core.SessionID) { o.onDrop(room, sid) }},
	}
	loop := spotlight.NewLoop(spotlight.Options{
		Local:    sid.Identity(),
		Sink:     sink,
		Retry:    o.Stage.Retry,
		Observer: o.Metrics,
		Logger:   log.Logger.With().Str("sid", string(sid)).Str("room", string(room.Room().Name)).Logger(),
	}, o.Stage.InboxSize)

	if old, ok := o.Registry.StageOf(sid); ok {
		old.Stop()
	}
	o.Registry.AttachStage(sid, loop)
	o.Relays.OpenStage(sid)
	o.Metrics.ViewerStarted()
	go func() {
		loop.Run(o.ctx)
		o.Metrics.ViewerStopped()
	}()
	room.Subscribe(sid, loop)
}

func (o *Orchestrator) post(sid core.SessionID, ev core.Event) error {
	stage, ok := o.Registry.StageOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	if !stage.Post(ev) {
		return spotlight.ErrLoopStopped
	}
	return nil
}

func (o *Orchestrator) Pin(sid core.SessionID, target domain.Identity) error {
	return o.post(sid, core.Pin{ID: target})
}

func (o *Orchestrator) ClearPin(sid core.SessionID) error {
	return o.post(sid, core.ClearPin{})
}

func (o *Orchestrator) PreviewSelf(sid core.SessionID) error {
	return o.post(sid, core.PreviewLocalSelf{})
}

// SetSpeaking records a client's voice activity report.
func (o *Orchestrator) SetSpeaking(sid core.SessionID, speaking bool) error {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	room, ok := o.Rooms.GetRoom(roomName)
	if !ok {
		return ErrNotInRoom
	}
	room.SetSpeaking(sid, speaking)
	return nil
}

// Snapshot returns the stage state of sid's viewer session.
func (o *Orchestrator) Snapshot(ctx context.Context, sid core.SessionID) (spotlight.Snapshot, error) {
	stage, ok := o.Registry.StageOf(sid)
	if !ok {
		return spotlight.Snapshot{}, ErrNotInRoom
	}
	return stage.Snapshot(ctx)
}
