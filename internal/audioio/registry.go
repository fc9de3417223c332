package audioio

import (
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks open streams for status reporting.
type Registry struct {
	mu      sync.RWMutex
	streams map[uuid.UUID]*AudioIO
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[uuid.UUID]*AudioIO)}
}

func (r *Registry) add(a *AudioIO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[a.ID] = a
}

func (r *Registry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, id)
}

// Len returns the number of open streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// Get returns the stream with the given ID.
func (r *Registry) Get(id string) (*AudioIO, bool) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.streams[uid]
	return a, ok
}

// Snapshots returns the state of every open stream ordered by ID.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	streams := make([]*AudioIO, 0, len(r.streams))
	for _, a := range r.streams {
		streams = append(streams, a)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(streams))
	for _, a := range streams {
		out = append(out, a.Snapshot())
	}
	slices.SortFunc(out, func(x, y Snapshot) int {
		return strings.Compare(x.ID, y.ID)
	})
	return out
}
