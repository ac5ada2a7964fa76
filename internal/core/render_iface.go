package core

import "github.com/dkeye/Spotlight/internal/domain"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// RenderSink receives stage commands. Implementations must not block:
// they are called from the stage loop.
type RenderSink interface {
	ShowOnStage(track *domain.Track, label string, isScreenShare bool)
	ClearStage()
	Notify(message string, severity Severity)
}

// MultiSink fans every command out to all sinks in order.
type MultiSink []RenderSink

func (m MultiSink) ShowOnStage(track *domain.Track, label string, isScreenShare bool) {
	for _, s := range m {
		s.ShowOnStage(track, label, isScreenShare)
	}
}

func (m MultiSink) ClearStage() {
	for _, s := range m {
		s.ClearStage()
	}
}

func (m MultiSink) Notify(message string, severity Severity) {
	for _, s := range m {
		s.Notify(message, severity)
	}
}
