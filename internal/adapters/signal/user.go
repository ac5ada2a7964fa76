package signal

import (
	"encoding/json"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRename(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type renamePayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p renamePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename")
	if err := ctl.Orch.Rename(sid, p.Name); err != nil {
		ctl.sendError(conn, "invalid_name")
		return
	}
	ctl.handleWhoAmI(sid, conn)
	ctl.Orch.Broadcast(sid, struct {
		Type   string     `json:"type"`
		Member memberView `json:"member"`
	}{
		Type:   "member_updated",
		Member: ctl.self(sid),
	})
}

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	p := ctl.Orch.Registry.GetOrCreateParticipant(sid)

	resp := struct {
		Type string          `json:"type"`
		ID   domain.Identity `json:"id"`
		Name string          `json:"name"`
		Room domain.RoomName `json:"room,omitempty"`
	}{
		Type: "whoami",
		ID:   p.ID,
		Name: p.Name,
	}
	if roomName, _, ok := ctl.Orch.Registry.RoomOf(sid); ok {
		resp.Room = roomName
	}
	ctl.sendJSON(conn, resp)
}
