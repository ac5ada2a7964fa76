package domain

// Member represents a participant's presence in a room.
// No transport or lifecycle logic here.
type Member struct {
	Participant *Participant
	Speaking    bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(p *Participant) *Member {
	return &Member{Participant: p}
}
