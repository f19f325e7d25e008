// Package resolver maps free-text queries onto registered entities.
package resolver

import (
	"strings"
	"sync"

	"github.com/taljindergill78/FSE570/internal/entities"
)

// TeslaID is the registry id of the bundled default entity.
const TeslaID = "tesla_inc_cik_0001318605"

// Registry holds the known entities in a fixed order. It is safe for
// concurrent use; Replace swaps the whole list atomically.
type Registry struct {
	mu       sync.RWMutex
	entities []entities.Entity
}

// NewRegistry builds a registry over copies of the given entities.
func NewRegistry(list []entities.Entity) *Registry {
	r := &Registry{}
	r.Replace(list)
	return r
}

// DefaultEntities returns the bundled registry contents.
func DefaultEntities() []entities.Entity {
	return []entities.Entity{
		entities.NewEntity(
			TeslaID,
			"Tesla, Inc.",
			entities.EntityPublicCompany,
			map[string]string{"cik": "0001318605", "ticker": "TSLA", "make": "TESLA"},
			[]string{"Tesla", "Tesla Inc", "Tesla Motors", "TSLA"},
		),
	}
}

// DefaultRegistry returns a registry seeded with DefaultEntities.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultEntities())
}

// Replace swaps the registry contents.
func (r *Registry) Replace(list []entities.Entity) {
	cp := make([]entities.Entity, len(list))
	for i := range list {
		cp[i] = list[i].Clone()
	}
	r.mu.Lock()
	r.entities = cp
	r.mu.Unlock()
}

// Entities returns a copy of the registered entities in registry order.
func (r *Registry) Entities() []entities.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.Entity, len(r.entities))
	for i := range r.entities {
		out[i] = r.entities[i].Clone()
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Lookup finds an entity by id.
func (r *Registry) Lookup(id string) (entities.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.entities {
		if r.entities[i].ID == id {
			return r.entities[i].Clone(), true
		}
	}
	return entities.Entity{}, false
}

// Resolve returns every entity whose name or an alias matches the query, in
// registry order. A match is equality or containment in either direction
// after trimming and lowercasing. An empty query matches nothing.
func (r *Registry) Resolve(query string) []entities.Entity {
	q := normalize(query)
	if q == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entities.Entity
	for i := range r.entities {
		if matchesEntity(q, r.entities[i]) {
			out = append(out, r.entities[i].Clone())
		}
	}
	return out
}

// ResolveOne returns the first entity Resolve would return.
func (r *Registry) ResolveOne(query string) (entities.Entity, bool) {
	matches := r.Resolve(query)
	if len(matches) == 0 {
		return entities.Entity{}, false
	}
	return matches[0], true
}

func matchesEntity(q string, e entities.Entity) bool {
	if matches(q, normalize(e.Name)) {
		return true
	}
	for _, alias := range e.Aliases {
		if matches(q, normalize(alias)) {
			return true
		}
	}
	return false
}

func matches(q, candidate string) bool {
	if candidate == "" {
		return false
	}
	return q == candidate || strings.Contains(q, candidate) || strings.Contains(candidate, q)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
