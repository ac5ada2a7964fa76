package spotlight

import (
	"fmt"

	"github.com/dkeye/Spotlight/internal/domain"
)

// StageState is what currently occupies the stage.
// Track is non-nil iff Participant is non-empty.
type StageState struct {
	Track         *domain.Track   `json:"track,omitempty"`
	Participant   domain.Identity `json:"participant,omitempty"`
	IsScreenShare bool            `json:"is_screen_share"`
}

func (s StageState) Empty() bool { return s.Track == nil }

// Rule names the selection rule that decided the stage.
type Rule int

const (
	RuleEmpty Rule = iota
	RuleForced
	RulePinned
	RuleSpeaker
	RuleHandoff
	RuleFallback
)

func (r Rule) String() string {
	switch r {
	case RuleEmpty:
		return "empty"
	case RuleForced:
		return "forced"
	case RulePinned:
		return "pinned"
	case RuleSpeaker:
		return "speaker"
	case RuleHandoff:
		return "handoff"
	case RuleFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Rule(%d)", int(r))
	}
}

func (r Rule) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Sticky reports whether the rule holds the stage even with no track to show.
func (r Rule) Sticky() bool { return r == RuleForced || r == RulePinned }

// Snapshot is a read-only copy of a controller's state.
type Snapshot struct {
	Local        domain.Identity      `json:"local"`
	Stage        StageState           `json:"stage"`
	Label        string               `json:"label,omitempty"`
	Rule         Rule                 `json:"rule"`
	Pinned       domain.Identity      `json:"pinned,omitempty"`
	Forcing      domain.Identity      `json:"forcing,omitempty"`
	LastSpeaker  domain.Identity      `json:"last_speaker,omitempty"`
	Handoff      domain.Identity      `json:"handoff,omitempty"`
	Speakers     []domain.Identity    `json:"speakers"`
	Sharers      []domain.Identity    `json:"sharers"`
	Participants []domain.Participant `json:"participants"`
	Retrying     []domain.Identity    `json:"retrying,omitempty"`
}

// SharingActive drives the "screen share in progress" indicator.
func (s Snapshot) SharingActive() bool { return len(s.Sharers) > 0 }
