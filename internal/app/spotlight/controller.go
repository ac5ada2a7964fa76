// Package spotlight decides what occupies the stage of a call.
//
// A Controller consumes core events in order and keeps the stage equal to the
// highest-priority selection rule that can currently be satisfied:
//
//  1. forced: the first active screen share
//  2. pinned: the participant the user pinned (screen before camera)
//  3. speaker: the last active speaker with a camera
//  4. handoff: the camera of a participant whose on-stage share just ended
//  5. fallback: the first camera, then the first screen share
//
// Forced and pinned selections are sticky: when their target has no track the
// stage stays empty rather than moving on, until the selection is cleared.
package spotlight

import (
	"fmt"
	"slices"

	"github.com/dkeye/Spotlight/internal/app/reconcile"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/rs/zerolog"
)

// Observer is told about stage transitions and retry outcomes.
type Observer interface {
	StageChanged(rule Rule)
	RetryScheduled()
	RetryExhausted()
}

type noopObserver struct{}

func (noopObserver) StageChanged(Rule) {}
func (noopObserver) RetryScheduled()   {}
func (noopObserver) RetryExhausted()   {}

type Options struct {
	// Local is the identity of the viewer this stage belongs to.
	Local     domain.Identity
	Sink      core.RenderSink
	Scheduler core.Scheduler
	Retry     reconcile.Policy
	Observer  Observer
	Logger    zerolog.Logger
}

// Controller owns the stage of one call session. It is not safe for
// concurrent use; drive it from a single goroutine (see Loop).
type Controller struct {
	local   domain.Identity
	roster  *Roster
	tracks  *TrackRegistry
	retries *reconcile.Reconciler
	sink    core.RenderSink
	obs     Observer
	logger  zerolog.Logger

	stage StageState
	label string
	rule  Rule

	pinned      domain.Identity
	forcing     domain.Identity
	lastSpeaker domain.Identity
	handoff     domain.Identity
	speakers    []domain.Identity
}

func New(opts Options) *Controller {
	logger := opts.Logger.With().Str("module", "spotlight").Str("local", string(opts.Local)).Logger()
	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	return &Controller{
		local:   opts.Local,
		roster:  NewRoster(),
		tracks:  NewTrackRegistry(),
		retries: reconcile.New(opts.Scheduler, opts.Retry, logger),
		sink:    opts.Sink,
		obs:     obs,
		logger:  logger,
	}
}

// Dispatch applies one event and re-evaluates the stage.
func (c *Controller) Dispatch(ev core.Event) {
	c.logger.Debug().Str("event", ev.EventName()).Msg("dispatch")
	switch e := ev.(type) {
	case core.ParticipantConnected:
		c.onConnected(e)
	case core.ParticipantDisconnected:
		c.onDisconnected(e)
	case core.CameraTrackAvailable:
		c.onCameraAvailable(e)
	case core.CameraTrackRemoved:
		c.onCameraRemoved(e)
	case core.ScreenTrackAvailable:
		c.onScreenAvailable(e)
	case core.ScreenTrackRemoved:
		c.onScreenRemoved(e)
	case core.ActiveSpeakersChanged:
		c.onSpeakers(e)
	case core.Pin:
		c.onPin(e)
	case core.ClearPin:
		c.onClearPin()
	case core.PreviewLocalSelf:
		c.onPreviewLocalSelf()
	default:
		c.logger.Warn().Str("event", ev.EventName()).Msg("unhandled event")
	}
}

func (c *Controller) onConnected(e core.ParticipantConnected) {
	if c.roster.Add(e.ID, e.Name) && e.ID != c.local {
		c.notify(core.SeverityInfo, "%s joined the call", c.roster.DisplayName(e.ID))
	}
	c.evaluate("participant-connected")
}

func (c *Controller) onDisconnected(e core.ParticipantDisconnected) {
	id := e.ID
	if !c.roster.Has(id) && !c.tracks.Has(id) {
		return
	}
	// Retries go first so none can revive the removed participant.
	c.retries.Cancel(id)
	c.tracks.Remove(id)
	if c.pinned == id {
		c.pinned = ""
	}
	if c.forcing == id {
		c.forcing = ""
	}
	if c.lastSpeaker == id {
		c.lastSpeaker = ""
	}
	if c.handoff == id {
		c.handoff = ""
	}
	c.speakers = slices.DeleteFunc(c.speakers, func(x domain.Identity) bool { return x == id })
	name := c.roster.DisplayName(id)
	c.roster.Remove(id)
	if id != c.local {
		c.notify(core.SeverityInfo, "%s left the call", name)
	}
	c.evaluate("participant-disconnected")
}

func (c *Controller) onCameraAvailable(e core.CameraTrackAvailable) {
	if e.Track == nil {
		return
	}
	c.ensure(e.ID)
	c.tracks.SetCamera(e.ID, e.Track)
	// The awaited track arrived through the normal path.
	c.retries.Cancel(e.ID)
	c.evaluate("camera-available")
	// Either the handoff landed or a higher rule holds the stage.
	if c.handoff == e.ID {
		c.handoff = ""
	}
}

func (c *Controller) onCameraRemoved(e core.CameraTrackRemoved) {
	if !c.tracks.ClearCamera(e.ID) {
		return
	}
	if c.handoff == e.ID {
		c.handoff = ""
		c.retries.Cancel(e.ID)
	}
	c.evaluate("camera-removed")
}

func (c *Controller) onScreenAvailable(e core.ScreenTrackAvailable) {
	if e.Track == nil {
		return
	}
	c.ensure(e.ID)
	started := c.tracks.Screen(e.ID) == nil
	c.tracks.SetScreen(e.ID, e.Track)
	if c.forcing == "" || c.tracks.Screen(c.forcing) == nil {
		c.forcing = e.ID
		c.handoff = ""
		c.retries.CancelAll()
	}
	if started {
		if e.ID == c.local {
			c.notify(core.SeveritySuccess, "Screen sharing started")
		} else {
			c.notify(core.SeverityInfo, "%s started sharing their screen", c.roster.DisplayName(e.ID))
		}
	}
	c.evaluate("screen-available")
}

func (c *Controller) onScreenRemoved(e core.ScreenTrackRemoved) {
	id := e.ID
	wasOnStage := c.stage.Participant == id && c.stage.IsScreenShare
	if !c.tracks.ClearScreen(id) {
		return
	}
	if c.forcing == id {
		c.forcing = ""
	}
	c.notify(core.SeverityInfo, "%s stopped sharing their screen", c.roster.DisplayName(id))
	if wasOnStage && !c.handoffShadowed() {
		c.handoff = id
	}
	c.evaluate("screen-removed")
	if c.handoff == id && c.tracks.Camera(id) == nil {
		c.scheduleHandoff(id)
	}
}

// handoffShadowed reports whether a higher rule than handoff decides the stage.
func (c *Controller) handoffShadowed() bool {
	if c.forcing != "" || c.pinned != "" {
		return true
	}
	return c.lastSpeaker != "" && c.tracks.Camera(c.lastSpeaker) != nil
}

// handoffLanded ends a handoff once the sharer's camera is on stage.
func (c *Controller) handoffLanded(id domain.Identity) {
	c.handoff = ""
	c.retries.Cancel(id)
	c.notify(core.SeverityInfo, "Screen sharing ended, switched to %s's camera", c.roster.DisplayName(id))
}

// scheduleHandoff waits for the camera of a participant whose share left the stage.
func (c *Controller) scheduleHandoff(id domain.Identity) {
	c.obs.RetryScheduled()
	c.retries.Schedule(id,
		func(int) bool {
			if c.handoff != id {
				return true
			}
			if c.tracks.Camera(id) == nil {
				return false
			}
			c.evaluate("handoff-retry")
			c.handoff = ""
			return true
		},
		func() {
			c.obs.RetryExhausted()
			if c.handoff != id {
				return
			}
			c.handoff = ""
			if !c.handoffShadowed() {
				c.notify(core.SeverityInfo, "%s's camera is not available", c.roster.DisplayName(id))
			}
			c.evaluate("handoff-exhausted")
		},
	)
}

func (c *Controller) onSpeakers(e core.ActiveSpeakersChanged) {
	c.speakers = slices.Clone(e.IDs)
	if c.pinned == "" && c.forcing == "" {
		for _, id := range e.IDs {
			if c.tracks.Camera(id) != nil {
				c.lastSpeaker = id
				break
			}
		}
	}
	c.evaluate("speakers-changed")
}

func (c *Controller) onPin(e core.Pin) {
	if e.ID == "" {
		return
	}
	if !c.roster.Has(e.ID) && e.ID != c.local {
		c.logger.Warn().Str("target", string(e.ID)).Msg("pin of unknown participant ignored")
		c.notify(core.SeverityWarning, "That participant is no longer in the call")
		return
	}
	c.setPin(e.ID, "pin")
	if c.tracks.Has(e.ID) {
		c.notify(core.SeverityInfo, "Pinned %s", c.roster.DisplayName(e.ID))
	} else {
		c.notify(core.SeverityWarning, "%s has no video to show yet", c.roster.DisplayName(e.ID))
	}
}

func (c *Controller) onClearPin() {
	c.pinned = ""
	c.notify(core.SeverityInfo, "Following the active speaker again")
	c.evaluate("clear-pin")
}

func (c *Controller) onPreviewLocalSelf() {
	if c.local == "" {
		return
	}
	if !c.tracks.Has(c.local) {
		c.notify(core.SeverityWarning, "Your camera is off")
	}
	c.setPin(c.local, "preview-self")
}

func (c *Controller) setPin(id domain.Identity, reason string) {
	c.pinned = id
	c.handoff = ""
	c.retries.CancelAll()
	c.evaluate(reason)
}

// ensure adds participants that publish before their connect event is seen.
func (c *Controller) ensure(id domain.Identity) {
	if !c.roster.Has(id) {
		c.roster.Add(id, "")
	}
}

func (c *Controller) notify(sev core.Severity, format string, args ...any) {
	c.sink.Notify(fmt.Sprintf(format, args...), sev)
}

func (c *Controller) Stage() StageState              { return c.stage }
func (c *Controller) Rule() Rule                     { return c.rule }
func (c *Controller) Pinned() domain.Identity        { return c.pinned }
func (c *Controller) Forcing() domain.Identity       { return c.forcing }
func (c *Controller) Handoff() domain.Identity       { return c.handoff }
func (c *Controller) Tracks() *TrackRegistry         { return c.tracks }
func (c *Controller) Roster() *Roster                { return c.roster }
func (c *Controller) Retries() *reconcile.Reconciler { return c.retries }

func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Local:        c.local,
		Stage:        c.stage,
		Label:        c.label,
		Rule:         c.rule,
		Pinned:       c.pinned,
		Forcing:      c.forcing,
		LastSpeaker:  c.lastSpeaker,
		Handoff:      c.handoff,
		Speakers:     slices.Clone(c.speakers),
		Sharers:      c.tracks.Sharers(),
		Participants: c.roster.Entries(),
		Retrying:     c.retries.Targets(),
	}
}

// Close cancels pending retries. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.retries.CancelAll()
}
