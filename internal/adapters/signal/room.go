package signal

import (
	"encoding/json"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

type memberView struct {
	ID   domain.Identity `json:"id"`
	Name string          `json:"name"`
}

func (ctl *SignalWSController) self(sid core.SessionID) memberView {
	p := ctl.Orch.Registry.GetOrCreateParticipant(sid)
	return memberView{ID: p.ID, Name: p.Name}
}

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		ctl.sendError(conn, "rate_limited")
		return
	}

	if p.Name != "" {
		if err := ctl.Orch.Registry.UpdateName(sid, p.Name); err != nil {
			ctl.sendError(conn, "invalid_name")
			return
		}
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename on join")
	}

	name := domain.NormalizeRoomName(p.Room)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(name)).Msg("join")
	room, ok := ctl.Orch.Join(sid, name)
	if !ok {
		ctl.sendError(conn, "no_session")
		return
	}
	clientResp := struct {
		Type    string           `json:"type"`
		Room    domain.RoomName  `json:"room"`
		Self    memberView       `json:"self"`
		Members []core.MemberDTO `json:"members"`
		Count   int              `json:"count"`
	}{
		Type:    "room_state",
		Room:    room.Room().Name,
		Self:    ctl.self(sid),
		Members: room.MembersSnapshot(),
		Count:   room.MemberCount(),
	}
	ctl.sendJSON(conn, clientResp)

	ctl.Orch.Broadcast(sid, struct {
		Type   string     `json:"type"`
		Member memberView `json:"member"`
	}{
		Type:   "member_joined",
		Member: ctl.self(sid),
	})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	roomName, ok := ctl.Orch.Leave(sid)
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})
	if ok {
		ctl.Orch.BroadcastRoom(roomName, struct {
			Type   string     `json:"type"`
			Member memberView `json:"member"`
		}{
			Type:   "member_left",
			Member: ctl.self(sid),
		})
	}
}
