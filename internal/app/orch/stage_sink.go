package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Spotlight/internal/app/sfu"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog/log"
)

// Messages pushed to a viewer when its stage changes.
type StageMessage struct {
	Type        string          `json:"type"`
	Participant domain.Identity `json:"participant"`
	Track       domain.TrackID  `json:"track"`
	Label       string          `json:"label"`
	Screen      bool            `json:"screen"`
}

type StageClearMessage struct {
	Type string `json:"type"`
}

type NoticeMessage struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Severity core.Severity `json:"severity"`
}

// signalSink renders stage commands as JSON frames on the viewer's
// signal connection.
type signalSink struct {
	sid    core.SessionID
	sess   core.MemberSession
	onDrop func(sid core.SessionID)
}

func (s *signalSink) ShowOnStage(track *domain.Track, label string, isScreenShare bool) {
	s.send(StageMessage{
		Type:        "stage",
		Participant: track.Owner,
		Track:       track.ID,
		Label:       label,
		Screen:      isScreenShare,
	})
}

func (s *signalSink) ClearStage() {
	s.send(StageClearMessage{Type: "stage_clear"})
}

func (s *signalSink) Notify(message string, severity core.Severity) {
	s.send(NoticeMessage{Type: "notice", Message: message, Severity: severity})
}

func (s *signalSink) send(v any) {
	conn := s.sess.Signal()
	if conn == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch.stage").Msg("marshal stage message")
		return
	}
	if err := conn.TrySend(data); err != nil {
		if errors.Is(err, core.ErrBackpressure) && s.onDrop != nil {
			s.onDrop(s.sid)
		}
		return
	}
}

// mediaSink points the viewer's stage out-track at the relay of the
// track on stage.
type mediaSink struct {
	sid    core.SessionID
	relays *sfu.RelayManager
}

func (m *mediaSink) ShowOnStage(track *domain.Track, _ string, _ bool) {
	m.relays.SetStage(m.sid, track.ID)
}

func (m *mediaSink) ClearStage() {
	m.relays.ClearStage(m.sid)
}

func (m *mediaSink) Notify(string, core.Severity) {}
