package spotlight

import (
	"reflect"
	"testing"

	"github.com/dkeye/Spotlight/internal/domain"
)

func TestTrackRegistry_setGetClear(t *testing.T) {
	r := NewTrackRegistry()
	if r.HasAnyTrack() {
		t.Fatal("new registry should be empty")
	}
	cam := domain.NewTrack("a", domain.TrackCamera)
	scr := domain.NewTrack("a", domain.TrackScreen)
	r.SetCamera("a", cam)
	r.SetScreen("a", scr)
	if r.Camera("a") != cam || r.Screen("a") != scr {
		t.Fatal("expected stored tracks back")
	}
	if !r.ClearCamera("a") || r.ClearCamera("a") {
		t.Error("ClearCamera should report true once")
	}
	if r.Camera("a") != nil || r.Screen("a") != scr {
		t.Error("clearing camera must not touch the screen entry")
	}
	if !r.HasAnyTrack() {
		t.Error("screen entry should still count")
	}
}

func TestTrackRegistry_removeClearsBoth(t *testing.T) {
	r := NewTrackRegistry()
	r.SetCamera("a", domain.NewTrack("a", domain.TrackCamera))
	r.SetScreen("a", domain.NewTrack("a", domain.TrackScreen))
	if !r.Remove("a") {
		t.Fatal("expected Remove to report true")
	}
	if r.Has("a") || r.HasAnyTrack() {
		t.Error("expected no tracks after Remove")
	}
	if r.Remove("a") {
		t.Error("second Remove should be a no-op")
	}
}

func TestTrackRegistry_insertionOrder(t *testing.T) {
	r := NewTrackRegistry()
	a := domain.NewTrack("a", domain.TrackCamera)
	b := domain.NewTrack("b", domain.TrackCamera)
	r.SetCamera("a", a)
	r.SetCamera("b", b)

	a2 := domain.NewTrack("a", domain.TrackCamera)
	r.SetCamera("a", a2)
	if id, tr, _ := r.FirstCamera(); id != "a" || tr != a2 {
		t.Errorf("replacing a track must keep its position, got %s", id)
	}

	r.ClearCamera("a")
	r.SetCamera("a", a)
	if id, _, _ := r.FirstCamera(); id != "b" {
		t.Errorf("re-adding after clear goes to the back, got first %s", id)
	}

	r.SetScreen("c", domain.NewTrack("c", domain.TrackScreen))
	r.SetScreen("b", domain.NewTrack("b", domain.TrackScreen))
	if got := r.Sharers(); !reflect.DeepEqual(got, []domain.Identity{"c", "b"}) {
		t.Errorf("expected sharers [c b], got %v", got)
	}
	if id, _, ok := r.FirstScreen(); !ok || id != "c" {
		t.Errorf("expected first screen c, got %s", id)
	}
}

func TestRoster(t *testing.T) {
	r := NewRoster()
	if !r.Add("a", "alice") {
		t.Fatal("first add should report new")
	}
	if r.Add("a", "alicia") {
		t.Error("second add should not report new")
	}
	if got := r.DisplayName("a"); got != "alicia" {
		t.Errorf("expected renamed alicia, got %q", got)
	}
	r.Add("a", "")
	if got := r.DisplayName("a"); got != "alicia" {
		t.Errorf("empty name must not overwrite, got %q", got)
	}
	r.Add("b", "")
	if got := r.DisplayName("b"); got != domain.DefaultDisplayName {
		t.Errorf("expected default name, got %q", got)
	}
	want := []domain.Participant{{ID: "a", Name: "alicia"}, {ID: "b", Name: domain.DefaultDisplayName}}
	if got := r.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !r.Remove("a") || r.Remove("a") {
		t.Error("Remove should report true once")
	}
	if r.Has("a") || r.Len() != 1 {
		t.Error("a should be gone")
	}
}
