package spotlight

import (
	"slices"

	"github.com/dkeye/Spotlight/internal/domain"
)

// orderedTracks is an identity-keyed map that remembers insertion order.
type orderedTracks struct {
	order []domain.Identity
	byID  map[domain.Identity]*domain.Track
}

func newOrderedTracks() orderedTracks {
	return orderedTracks{byID: make(map[domain.Identity]*domain.Track)}
}

func (o *orderedTracks) set(id domain.Identity, t *domain.Track) {
	if _, ok := o.byID[id]; !ok {
		o.order = append(o.order, id)
	}
	o.byID[id] = t
}

func (o *orderedTracks) clear(id domain.Identity) bool {
	if _, ok := o.byID[id]; !ok {
		return false
	}
	delete(o.byID, id)
	o.order = slices.DeleteFunc(o.order, func(x domain.Identity) bool { return x == id })
	return true
}

func (o *orderedTracks) first() (domain.Identity, *domain.Track, bool) {
	if len(o.order) == 0 {
		return "", nil, false
	}
	id := o.order[0]
	return id, o.byID[id], true
}

// TrackRegistry maps identities to their current camera and screen tracks.
// Pure data: no policy, no side effects.
type TrackRegistry struct {
	cameras orderedTracks
	screens orderedTracks
}

func NewTrackRegistry() *TrackRegistry {
	return &TrackRegistry{cameras: newOrderedTracks(), screens: newOrderedTracks()}
}

func (r *TrackRegistry) SetCamera(id domain.Identity, t *domain.Track) { r.cameras.set(id, t) }
func (r *TrackRegistry) ClearCamera(id domain.Identity) bool           { return r.cameras.clear(id) }
func (r *TrackRegistry) SetScreen(id domain.Identity, t *domain.Track) { r.screens.set(id, t) }
func (r *TrackRegistry) ClearScreen(id domain.Identity) bool           { return r.screens.clear(id) }

func (r *TrackRegistry) Camera(id domain.Identity) *domain.Track { return r.cameras.byID[id] }
func (r *TrackRegistry) Screen(id domain.Identity) *domain.Track { return r.screens.byID[id] }

func (r *TrackRegistry) HasAnyTrack() bool {
	return len(r.cameras.byID) > 0 || len(r.screens.byID) > 0
}

// Has reports whether id owns any track.
func (r *TrackRegistry) Has(id domain.Identity) bool {
	return r.Camera(id) != nil || r.Screen(id) != nil
}

// Remove drops both entries for id in one step.
func (r *TrackRegistry) Remove(id domain.Identity) bool {
	cam := r.cameras.clear(id)
	scr := r.screens.clear(id)
	return cam || scr
}

// FirstCamera returns the earliest registered camera track.
func (r *TrackRegistry) FirstCamera() (domain.Identity, *domain.Track, bool) {
	return r.cameras.first()
}

// FirstScreen returns the earliest registered screen track.
func (r *TrackRegistry) FirstScreen() (domain.Identity, *domain.Track, bool) {
	return r.screens.first()
}

// Sharers lists identities with a screen track, in share order.
func (r *TrackRegistry) Sharers() []domain.Identity { return slices.Clone(r.screens.order) }
