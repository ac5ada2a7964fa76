package core

import "github.com/dkeye/Spotlight/internal/domain"

type SessionID string

// Identity maps a session onto the participant identity used by stages.
func (s SessionID) Identity() domain.Identity { return domain.Identity(s) }

// MemberSession binds domain.Member and its transport endpoints.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
	Media() MediaConnection
	UpdateSignal(SignalConnection) MemberSession
	UpdateMedia(MediaConnection) MemberSession
}
