// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxIdentityLen    = 64
	MaxDisplayNameLen = 36

	// DefaultDisplayName is shown for participants whose name is not known yet.
	DefaultDisplayName = "Participant"
)

var (
	ErrIdentityEmpty = errors.New("identity empty")
	ErrIdentityLong  = errors.New("identity too long")
	ErrNameTooLong   = errors.New("display name too long")
	ErrNameEmpty     = errors.New("display name empty")
)

// Identity is the opaque, call-stable id of a participant.
type Identity string

type Participant struct {
	ID   Identity `json:"id"`
	Name string   `json:"name"`
}

func NewParticipant(id Identity, name string) (*Participant, error) {
	if id == "" {
		return nil, ErrIdentityEmpty
	}
	if len(id) > MaxIdentityLen {
		return nil, ErrIdentityLong
	}
	p := &Participant{ID: id}
	if err := p.SetName(name); err != nil {
		return nil, err
	}
	return p, nil
}

// NewGuest is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewGuest() *Participant {
	return &Participant{ID: Identity(uuid.NewString()), Name: "guest"}
}

func (p *Participant) SetName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	p.Name = name
	return nil
}

// DisplayName falls back to DefaultDisplayName for unknown names.
func DisplayName(name string) string {
	if name == "" {
		return DefaultDisplayName
	}
	return name
}
