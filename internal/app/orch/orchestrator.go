// Package orch wires rooms, per-viewer stage loops, media relays and
// signaling together.
package orch

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/dkeye/Spotlight/internal/app"
	"github.com/dkeye/Spotlight/internal/app/reconcile"
	"github.com/dkeye/Spotlight/internal/app/sfu"
	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/rtcp"
	"github.com/rs/zerolog/log"
)

// Metrics is the subset of internal/metrics the orchestrator reports to.
type Metrics interface {
	spotlight.Observer
	ViewerStarted()
	ViewerStopped()
	IncSignalDrops()
	IncKicks()
}

type StageOptions struct {
	Retry     reconcile.Policy
	InboxSize int
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy
	Relays   *sfu.RelayManager
	Metrics  Metrics
	Stage    StageOptions

	// ctx bounds every stage loop and relay started by the orchestrator.
	ctx context.Context
}

func New(ctx context.Context, reg *app.Registry, rooms core.RoomManager, policy app.Policy, m Metrics, stage StageOptions) *Orchestrator {
	if m == nil {
		m = nopMetrics{}
	}
	o := &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Policy:   policy,
		Metrics:  m,
		Stage:    stage,
		ctx:      ctx,
	}
	o.Relays = sfu.NewRelayManager(o.requestKeyframe)
	return o
}

// requestKeyframe forwards RTCP feedback to the publisher owning a track.
func (o *Orchestrator) requestKeyframe(owner domain.Identity, pkts []rtcp.Packet) {
	sess, ok := o.Registry.GetSession(core.SessionID(owner))
	if !ok {
		return
	}
	mc := sess.Media()
	if mc == nil || mc.IsClosed() {
		return
	}
	if err := mc.WriteRTCP(pkts); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("owner", string(owner)).Msg("keyframe request failed")
	}
}

// Broadcast sends v to every room mate of sid and applies the backpressure
// policy to whoever could not keep up.
func (o *Orchestrator) Broadcast(sid core.SessionID, v any) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	o.broadcast(roomName, sid, v)
}

// BroadcastRoom sends v to every member of a room.
func (o *Orchestrator) BroadcastRoom(roomName domain.RoomName, v any) {
	o.broadcast(roomName, "", v)
}

func (o *Orchestrator) broadcast(roomName domain.RoomName, from core.SessionID, v any) {
	room, ok := o.Rooms.GetRoom(roomName)
	if !ok {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast marshal")
		return
	}
	res := room.Broadcast(from, data)
	if o.Policy != nil {
		for _, m := range room.MembersSnapshot() {
			sid := core.SessionID(m.ID)
			if sid != from && !slices.Contains(res.Dropped, sid) {
				o.Policy.OnDelivered(sid)
			}
		}
	}
	for _, slow := range res.Dropped {
		o.onDrop(room, slow)
	}
}

func (o *Orchestrator) onDrop(room core.RoomService, sid core.SessionID) {
	o.Metrics.IncSignalDrops()
	if o.Policy == nil {
		return
	}
	switch action := o.Policy.OnBackPressure(room, sid); action {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow member")
		o.Metrics.IncKicks()
		// May be reached from a stage loop or under a room fan-out.
		go o.KickBySID(sid)
	case app.MarkSlow, app.DropFrame, app.NoAction:
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Str("action", action.String()).Msg("backpressure")
	}
}

type nopMetrics struct{}

func (nopMetrics) StageChanged(spotlight.Rule) {}
func (nopMetrics) RetryScheduled()             {}
func (nopMetrics) RetryExhausted()             {}
func (nopMetrics) ViewerStarted()              {}
func (nopMetrics) ViewerStopped()              {}
func (nopMetrics) IncSignalDrops()             {}
func (nopMetrics) IncKicks()                   {}
