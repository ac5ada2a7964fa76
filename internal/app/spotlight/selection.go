package spotlight

import (
	"github.com/dkeye/Spotlight/internal/domain"
)

// selectStage walks the rules in priority order.
func (c *Controller) selectStage() (StageState, Rule) {
	if c.forcing != "" {
		if t := c.tracks.Screen(c.forcing); t != nil {
			return StageState{Track: t, Participant: c.forcing, IsScreenShare: true}, RuleForced
		}
		return StageState{}, RuleForced
	}
	if c.pinned != "" {
		if st, ok := c.bestOf(c.pinned); ok {
			return st, RulePinned
		}
		return StageState{}, RulePinned
	}
	if c.lastSpeaker != "" {
		if t := c.tracks.Camera(c.lastSpeaker); t != nil {
			return StageState{Track: t, Participant: c.lastSpeaker}, RuleSpeaker
		}
	}
	if c.handoff != "" {
		if t := c.tracks.Camera(c.handoff); t != nil {
			return StageState{Track: t, Participant: c.handoff}, RuleHandoff
		}
	}
	if id, t, ok := c.tracks.FirstCamera(); ok {
		return StageState{Track: t, Participant: id}, RuleFallback
	}
	if id, t, ok := c.tracks.FirstScreen(); ok {
		return StageState{Track: t, Participant: id, IsScreenShare: true}, RuleFallback
	}
	return StageState{}, RuleEmpty
}

// bestOf prefers a participant's screen share over its camera.
func (c *Controller) bestOf(id domain.Identity) (StageState, bool) {
	if t := c.tracks.Screen(id); t != nil {
		return StageState{Track: t, Participant: id, IsScreenShare: true}, true
	}
	if t := c.tracks.Camera(id); t != nil {
		return StageState{Track: t, Participant: id}, true
	}
	return StageState{}, false
}

func (c *Controller) evaluate(reason string) {
	next, rule := c.selectStage()
	c.rule = rule
	if rule == RuleHandoff {
		defer c.handoffLanded(next.Participant)
	}

	label := ""
	if next.Track != nil {
		label = c.labelFor(next.Participant, next.IsScreenShare)
	}
	if next.Track == c.stage.Track && next.IsScreenShare == c.stage.IsScreenShare && label == c.label {
		return
	}
	c.stage = next
	c.label = label
	if next.Track == nil {
		c.sink.ClearStage()
	} else {
		c.sink.ShowOnStage(next.Track, label, next.IsScreenShare)
	}
	c.obs.StageChanged(rule)
	c.logger.Info().
		Str("reason", reason).
		Str("rule", rule.String()).
		Str("participant", string(next.Participant)).
		Bool("screen", next.IsScreenShare).
		Msg("stage changed")
}

func (c *Controller) labelFor(id domain.Identity, screen bool) string {
	name := c.roster.DisplayName(id)
	if screen {
		return name + "'s screen"
	}
	return name + "'s video"
}
