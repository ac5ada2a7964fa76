package spotlight

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/core/coretest"
	"github.com/dkeye/Spotlight/internal/domain"
)

var fuzzIDs = []domain.Identity{"me", "a", "b", "c"}

func randomEvent(r *rand.Rand) core.Event {
	id := fuzzIDs[r.IntN(len(fuzzIDs))]
	switch r.IntN(11) {
	case 0:
		return core.ParticipantConnected{ID: id, Name: string(id)}
	case 1:
		return core.ParticipantDisconnected{ID: id}
	case 2:
		return core.CameraTrackAvailable{ID: id, Track: domain.NewTrack(id, domain.TrackCamera)}
	case 3:
		return core.CameraTrackRemoved{ID: id}
	case 4:
		return core.ScreenTrackAvailable{ID: id, Track: domain.NewTrack(id, domain.TrackScreen)}
	case 5:
		return core.ScreenTrackRemoved{ID: id}
	case 6:
		var ids []domain.Identity
		for _, x := range fuzzIDs {
			if r.IntN(3) == 0 {
				ids = append(ids, x)
			}
		}
		return core.ActiveSpeakersChanged{IDs: ids}
	case 7:
		return core.Pin{ID: id}
	case 8:
		return core.ClearPin{}
	case 9:
		return core.PreviewLocalSelf{}
	default:
		return nil
	}
}

func checkInvariants(t *testing.T, step int, h *harness) {
	t.Helper()
	c := h.ctl
	st := c.Stage()

	if (st.Track == nil) != (st.Participant == "") {
		t.Fatalf("step %d: track/participant mismatch %+v", step, st)
	}
	if st.Track != nil {
		var want *domain.Track
		if st.IsScreenShare {
			want = c.Tracks().Screen(st.Participant)
		} else {
			want = c.Tracks().Camera(st.Participant)
		}
		if want != st.Track {
			t.Fatalf("step %d: stage shows a track the registry no longer holds", step)
		}
		if !c.Roster().Has(st.Participant) {
			t.Fatalf("step %d: stage participant %q not in roster", step, st.Participant)
		}
	}
	if f := c.Forcing(); f != "" {
		if c.Tracks().Screen(f) == nil {
			t.Fatalf("step %d: forcing %q without a screen", step, f)
		}
		if st.Participant != f || !st.IsScreenShare {
			t.Fatalf("step %d: forced screen of %q not on stage: %+v", step, f, st)
		}
	} else if p := c.Pinned(); p != "" {
		if want, ok := c.bestOf(p); ok {
			if want.Track != st.Track {
				t.Fatalf("step %d: pinned %q not on stage", step, p)
			}
		} else if st.Track != nil {
			t.Fatalf("step %d: pinned %q has no track but stage is %+v", step, p, st)
		}
	} else if st.Track == nil && c.Tracks().HasAnyTrack() {
		t.Fatalf("step %d: empty stage while tracks exist (rule %s)", step, c.Rule())
	}
	for _, id := range []domain.Identity{c.Pinned(), c.Forcing(), c.Handoff()} {
		if id != "" && id != c.local && !c.Roster().Has(id) {
			t.Fatalf("step %d: selection references departed %q", step, id)
		}
	}
	if hid := c.Handoff(); hid != "" && c.Tracks().Camera(hid) != nil {
		t.Fatalf("step %d: handoff to %q lingers while its camera is available", step, hid)
	}
	for _, id := range c.Retries().Targets() {
		if !c.Roster().Has(id) {
			t.Fatalf("step %d: retry for departed %q", step, id)
		}
	}

	last := h.sink.Last()
	switch {
	case st.Track == nil && last.Kind == coretest.CmdShow:
		t.Fatalf("step %d: sink shows %v but stage is empty", step, last.Track.ID)
	case st.Track != nil && (last.Kind != coretest.CmdShow || last.Track != st.Track):
		t.Fatalf("step %d: sink out of sync with stage", step)
	}
	stage := h.sink.Stage()
	for i := 1; i < len(stage); i++ {
		if stage[i].Kind == coretest.CmdClear && stage[i-1].Kind == coretest.CmdClear {
			t.Fatalf("step %d: duplicate clear emitted", step)
		}
	}
}

func TestInvariantsHoldUnderRandomEvents(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		r := rand.New(rand.NewPCG(seed, seed*7919))
		h := newHarness(t, "me")
		for step := range 300 {
			ev := randomEvent(r)
			if ev == nil {
				h.sched.Advance(time.Duration(r.IntN(700)) * time.Millisecond)
			} else {
				h.ctl.Dispatch(ev)
			}
			checkInvariants(t, step, h)
		}
		h.ctl.Close()
		if h.sched.Pending() != 0 {
			t.Fatalf("seed %d: timers left after close", seed)
		}
	}
}

func TestDisconnectEveryoneEmptiesStage(t *testing.T) {
	r := rand.New(rand.NewPCG(42, 42))
	h := newHarness(t, "me")
	for range 200 {
		if ev := randomEvent(r); ev != nil {
			h.ctl.Dispatch(ev)
		}
	}
	ids := slices.Clone(fuzzIDs)
	for _, id := range ids {
		h.disconnect(id)
	}
	h.sched.Advance(10 * time.Second)
	if !h.ctl.Stage().Empty() || h.ctl.Tracks().HasAnyTrack() || h.ctl.Roster().Len() != 0 {
		t.Fatalf("expected everything cleared, got %+v", h.ctl.Snapshot())
	}
	if h.ctl.Pinned() != "" && h.ctl.Pinned() != "me" {
		t.Errorf("unexpected pin %q", h.ctl.Pinned())
	}
}
