package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Spotlight/internal/app/orch"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) stageError(conn *WsSignalConn, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, orch.ErrNotInRoom) {
		ctl.sendError(conn, "not_in_room")
		return
	}
	log.Warn().Err(err).Str("module", "signal").Msg("stage action failed")
	ctl.sendError(conn, "stage_unavailable")
}

func (ctl *SignalWSController) handlePin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type string          `json:"type"`
		ID   domain.Identity `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		ctl.sendError(conn, "rate_limited")
		return
	}
	ctl.stageError(conn, ctl.Orch.Pin(sid, p.ID))
}

func (ctl *SignalWSController) handleClearPin(sid core.SessionID, conn *WsSignalConn) {
	ctl.stageError(conn, ctl.Orch.ClearPin(sid))
}

func (ctl *SignalWSController) handlePreviewSelf(sid core.SessionID, conn *WsSignalConn) {
	ctl.stageError(conn, ctl.Orch.PreviewSelf(sid))
}

func (ctl *SignalWSController) handleSpeaking(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type     string `json:"type"`
		Speaking bool   `json:"speaking"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.stageError(conn, ctl.Orch.SetSpeaking(sid, p.Speaking))
}

func (ctl *SignalWSController) handleUnpublish(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type string `json:"type"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	kind, err := domain.ParseTrackKind(p.Kind)
	if err != nil {
		ctl.sendError(conn, "bad_kind")
		return
	}
	if !ctl.Orch.Unpublish(sid, kind) {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("kind", p.Kind).Msg("nothing to unpublish")
	}
}
