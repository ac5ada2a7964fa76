package spotlight

import (
	"slices"

	"github.com/dkeye/Spotlight/internal/domain"
)

// Roster is the set of known participants, independent of their media.
type Roster struct {
	order []domain.Identity
	names map[domain.Identity]string
}

func NewRoster() *Roster {
	return &Roster{names: make(map[domain.Identity]string)}
}

// Add inserts id or updates its name. It reports whether id was new.
func (r *Roster) Add(id domain.Identity, name string) bool {
	_, known := r.names[id]
	if !known {
		r.order = append(r.order, id)
	}
	if name != "" || !known {
		r.names[id] = name
	}
	return !known
}

func (r *Roster) Remove(id domain.Identity) bool {
	if _, ok := r.names[id]; !ok {
		return false
	}
	delete(r.names, id)
	r.order = slices.DeleteFunc(r.order, func(x domain.Identity) bool { return x == id })
	return true
}

func (r *Roster) Has(id domain.Identity) bool {
	_, ok := r.names[id]
	return ok
}

// DisplayName never returns an empty string.
func (r *Roster) DisplayName(id domain.Identity) string {
	return domain.DisplayName(r.names[id])
}

func (r *Roster) Len() int { return len(r.order) }

// Entries returns participants in join order.
func (r *Roster) Entries() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, domain.Participant{ID: id, Name: domain.DisplayName(r.names[id])})
	}
	return out
}
