package core

import (
	"github.com/dkeye/Spotlight/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.Identity `json:"id"`
	Name     string          `json:"name"`
	Camera   domain.TrackID  `json:"camera,omitempty"`
	Screen   domain.TrackID  `json:"screen,omitempty"`
	Speaking bool            `json:"speaking"`
}

// RoomService is the core-facing API of a room.
// It owns membership and published tracks, fans stage events out to
// subscribed viewers, and never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Member(sid SessionID) (MemberSession, bool)

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID) bool
	Rename(sid SessionID, name string) error

	PublishTrack(sid SessionID, track *domain.Track) bool
	UnpublishTrack(sid SessionID, kind domain.TrackKind) (*domain.Track, bool)
	UnpublishByID(id domain.TrackID) bool
	SetSpeaking(sid SessionID, speaking bool)

	// Subscribe replays the current room state to sink, then streams changes.
	Subscribe(sid SessionID, sink EventSink)
	Unsubscribe(sid SessionID)

	Broadcast(from SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	GetRoom(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}
