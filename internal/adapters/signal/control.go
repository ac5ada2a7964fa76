package signal

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/rs/zerolog/log"
)

// handlePing replies with the server clock in milliseconds.
func (ctl *SignalWSController) handlePing(sid core.SessionID, conn *WsSignalConn) {
	room, _, _ := ctl.Orch.Registry.RoomOf(sid)
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
		Room string `json:"room,omitempty"`
		TS   int64  `json:"ts"`
	}{
		Type: "pong",
		Room: string(room),
		TS:   time.Now().UnixMilli(),
	})
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	if c == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, code string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": code,
	})
}
