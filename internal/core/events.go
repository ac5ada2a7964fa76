package core

import "github.com/dkeye/Spotlight/internal/domain"

// Event is the typed union of everything that can change a stage:
// media-session notifications and user actions alike.
type Event interface {
	EventName() string
}

type ParticipantConnected struct {
	ID   domain.Identity
	Name string
}

type ParticipantDisconnected struct {
	ID domain.Identity
}

type CameraTrackAvailable struct {
	ID    domain.Identity
	Track *domain.Track
}

type CameraTrackRemoved struct {
	ID domain.Identity
}

type ScreenTrackAvailable struct {
	ID    domain.Identity
	Track *domain.Track
}

type ScreenTrackRemoved struct {
	ID domain.Identity
}

// ActiveSpeakersChanged carries the complete current speaker list, loudest first.
type ActiveSpeakersChanged struct {
	IDs []domain.Identity
}

type Pin struct {
	ID domain.Identity
}

type ClearPin struct{}

// PreviewLocalSelf pins the local participant.
type PreviewLocalSelf struct{}

func (ParticipantConnected) EventName() string    { return "participant_connected" }
func (ParticipantDisconnected) EventName() string { return "participant_disconnected" }
func (CameraTrackAvailable) EventName() string    { return "camera_track_available" }
func (CameraTrackRemoved) EventName() string      { return "camera_track_removed" }
func (ScreenTrackAvailable) EventName() string    { return "screen_track_available" }
func (ScreenTrackRemoved) EventName() string      { return "screen_track_removed" }
func (ActiveSpeakersChanged) EventName() string   { return "active_speakers_changed" }
func (Pin) EventName() string                     { return "pin" }
func (ClearPin) EventName() string                { return "clear_pin" }
func (PreviewLocalSelf) EventName() string        { return "preview_local_self" }

// TrackAvailable builds the availability event matching the track kind.
func TrackAvailable(t *domain.Track) Event {
	if t.Kind == domain.TrackScreen {
		return ScreenTrackAvailable{ID: t.Owner, Track: t}
	}
	return CameraTrackAvailable{ID: t.Owner, Track: t}
}

// TrackRemoved builds the removal event matching kind.
func TrackRemoved(id domain.Identity, kind domain.TrackKind) Event {
	if kind == domain.TrackScreen {
		return ScreenTrackRemoved{ID: id}
	}
	return CameraTrackRemoved{ID: id}
}

// EventSink accepts events for ordered, asynchronous processing.
// Post reports false once the sink has stopped.
type EventSink interface {
	Post(ev Event) bool
}
