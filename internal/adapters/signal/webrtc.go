package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Spotlight/internal/adapters/rtc"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// candidateMessage is the trickle ICE frame in both directions.
type candidateMessage struct {
	Type          string  `json:"type"`
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (m candidateMessage) init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     m.Candidate,
		SDPMid:        m.SDPMid,
		SDPMLineIndex: m.SDPMLineIndex,
	}
}

// answerMessage tells the client which incoming track carries the stage
// and, if a selection already exists, which published track feeds it.
type answerMessage struct {
	Type        string         `json:"type"`
	SDP         string         `json:"sdp"`
	StageTrack  string         `json:"stage_track,omitempty"`
	StageStream string         `json:"stage_stream,omitempty"`
	StageSource domain.TrackID `json:"stage_source,omitempty"`
}

func (ctl *SignalWSController) sendCandidate(c core.SignalConnection, ci webrtc.ICECandidateInit) {
	ctl.sendJSON(c, candidateMessage{
		Type:          "candidate",
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	})
}

// handleOffer builds a fresh peer connection for sid. A repeated offer
// replaces the previous connection and its published tracks.
func (ctl *SignalWSController) handleOffer(ctx context.Context, sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		SDP string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SDP == "" {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad offer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	sess, ok := ctl.Orch.Registry.GetSession(sid)
	if !ok {
		ctl.sendError(conn, "no_session")
		return
	}
	if old := sess.Media(); old != nil {
		sess.UpdateMedia(nil)
		old.Close()
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("renegotiation: previous peer connection closed")
	}

	wc, err := rtc.NewWebRTCConnection(rtc.DefaultWebRTCConfig(ctl.Opts.ICEServers...), sid)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		ctl.sendError(conn, "media_unavailable")
		return
	}
	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) { ctl.sendCandidate(conn, ci) })
	ctl.Orch.BindMediaHandlers(wc, sid)

	if err := wc.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		wc.Close()
		ctl.sendError(conn, "media_unavailable")
		return
	}
	answer, err := wc.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		wc.Close()
		ctl.sendError(conn, "bad_offer")
		return
	}

	sess.UpdateMedia(wc)
	msg := answerMessage{Type: "answer", SDP: answer.SDP}
	if b, ok := ctl.Orch.OnMediaReady(sid); ok {
		msg.StageTrack, msg.StageStream, msg.StageSource = b.TrackID, b.StreamID, b.Source
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("stage_source", string(msg.StageSource)).Msg("answer sent")
	ctl.sendJSON(conn, msg)
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var m candidateMessage
	if err := json.Unmarshal(data, &m); err != nil || m.Candidate == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	sess, ok := ctl.Orch.Registry.GetSession(sid)
	if !ok {
		ctl.sendError(conn, "no_session")
		return
	}
	mc := sess.Media()
	if mc == nil {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("candidate before offer")
		ctl.sendError(conn, "media_unavailable")
		return
	}
	if err := mc.AddICECandidate(m.init()); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}
