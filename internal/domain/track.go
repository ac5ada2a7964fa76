package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type TrackKind int

const (
	TrackCamera TrackKind = iota
	TrackScreen
)

func (k TrackKind) String() string {
	switch k {
	case TrackCamera:
		return "camera"
	case TrackScreen:
		return "screen"
	default:
		return fmt.Sprintf("TrackKind(%d)", int(k))
	}
}

func ParseTrackKind(s string) (TrackKind, error) {
	switch s {
	case "camera":
		return TrackCamera, nil
	case "screen":
		return TrackScreen, nil
	}
	return 0, fmt.Errorf("unknown track kind %q", s)
}

type TrackID string

// Track is a reference to a media stream owned by the media session.
// Holders must drop it once the track is removed.
type Track struct {
	ID    TrackID   `json:"id"`
	Kind  TrackKind `json:"kind"`
	Owner Identity  `json:"owner"`
}

func NewTrack(owner Identity, kind TrackKind) *Track {
	return &Track{ID: TrackID(uuid.NewString()), Kind: kind, Owner: owner}
}
