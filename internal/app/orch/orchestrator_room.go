package orch

import (
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join moves sid into roomName, leaving its current room first.
func (o *Orchestrator) Join(sid core.SessionID, roomName domain.RoomName) (core.RoomService, bool) {
	if current, _, ok := o.Registry.RoomOf(sid); ok {
		o.Leave(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("left previous room")
	}
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, false
	}
	room := o.Rooms.GetOrCreate(roomName)
	room.AddMember(sid, session)
	o.Registry.UpdateRoom(sid, roomName)
	o.startStage(sid, room)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomName)).Msg("added to room")
	return room, true
}

// Leave removes sid from its room but keeps the signal connection open.
// Published media stops; the peer connection stays for a later join.
func (o *Orchestrator) Leave(sid core.SessionID) (domain.RoomName, bool) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", false
	}
	o.Relays.StopOwner(sid.Identity())
	o.cleanupMembership(sid)
	return roomName, true
}

// KickBySID tears down media and membership of sid.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	o.cleanupMedia(sid)
	o.cleanupMembership(sid)
}

// OnDisconnect runs when the signal connection of sess is gone.
func (o *Orchestrator) OnDisconnect(sid core.SessionID, sess core.MemberSession) {
	if current, ok := o.Registry.GetSession(sid); !ok || current != sess {
		return
	}
	o.KickBySID(sid)
	o.Registry.Unbind(sid, sess)
	if o.Policy != nil {
		o.Policy.Forget(sid)
	}
}

func (o *Orchestrator) cleanupMembership(sid core.SessionID) {
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	if room, ok := o.Rooms.GetRoom(roomName); ok {
		room.Unsubscribe(sid)
		room.RemoveMember(sid)
		if room.MemberCount() == 0 {
			o.Rooms.StopRoom(roomName)
		}
	}
	if stage := o.Registry.RemoveRoom(sid); stage != nil {
		stage.Stop()
	}
	o.Relays.UnbindStage(sid)
}

// Rename validates and applies a new display name, in the room too.
func (o *Orchestrator) Rename(sid core.SessionID, name string) error {
	if err := o.Registry.UpdateName(sid, name); err != nil {
		return err
	}
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil
	}
	room, ok := o.Rooms.GetRoom(roomName)
	if !ok {
		return nil
	}
	return room.Rename(sid, name)
}

func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	for _, snap := range o.Registry.MembersOfRoom(name) {
		o.KickBySID(snap.SID)
	}
	o.Rooms.StopRoom(name)
}
