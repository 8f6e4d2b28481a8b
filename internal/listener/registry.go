package listener

import (
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/castctl/internal/logging"
)

// Registry is a thread-safe broadcast registry generic over a listener type L
// and an event-kind type K. Listeners are identified by value comparison
// (interface identity when L is an interface type), not by filter content.
//
// The listener set and the filter mapping are guarded by separate locks. The
// hot path, Fire, takes only read locks and briefly; add/remove traffic on
// one structure never serializes broadcasts against the other.
type Registry[L comparable, K comparable] struct {
	// listenersMu guards the append-mostly registration-order slice
	listenersMu sync.RWMutex
	listeners   []L

	// filtersMu guards the per-listener kind filters. A missing or empty
	// set means "receive every kind".
	filtersMu sync.RWMutex
	filters   map[L]map[K]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry[L comparable, K comparable]() *Registry[L, K] {
	return &Registry[L, K]{
		filters: make(map[L]map[K]struct{}),
	}
}

// Add registers a listener for the given kinds and reports whether anything
// changed. Re-adding an existing listener merges the new kinds into its
// filter set; adding with zero kinds clears the filter set so the listener
// receives every kind.
func (r *Registry[L, K]) Add(l L, kinds ...K) bool {
	changed := r.mergeFilter(l, kinds)

	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()

	for _, existing := range r.listeners {
		if existing == l {
			return changed
		}
	}
	r.listeners = append(r.listeners, l)
	return true
}

// mergeFilter applies the filter-set semantics of Add and reports whether
// the filter set changed
func (r *Registry[L, K]) mergeFilter(l L, kinds []K) bool {
	r.filtersMu.Lock()
	defer r.filtersMu.Unlock()

	if len(kinds) == 0 {
		// Zero kinds means "all kinds": drop any existing filter
		if _, had := r.filters[l]; had {
			delete(r.filters, l)
			return true
		}
		return false
	}

	set, ok := r.filters[l]
	if !ok {
		r.listenersMu.RLock()
		registered := r.contains(l)
		r.listenersMu.RUnlock()
		if registered {
			// Listener is already unfiltered; merging kinds into "all"
			// is still "all"
			return false
		}
		set = make(map[K]struct{}, len(kinds))
		r.filters[l] = set
	}

	changed := false
	for _, k := range kinds {
		if _, present := set[k]; !present {
			set[k] = struct{}{}
			changed = true
		}
	}
	return changed
}

// AddAll registers each listener for the given kinds and returns how many
// registrations changed
func (r *Registry[L, K]) AddAll(listeners []L, kinds ...K) int {
	count := 0
	for _, l := range listeners {
		if r.Add(l, kinds...) {
			count++
		}
	}
	return count
}

// Remove unregisters a listener and reports whether it was present
func (r *Registry[L, K]) Remove(l L) bool {
	r.listenersMu.Lock()
	removed := false
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			removed = true
			break
		}
	}
	r.listenersMu.Unlock()

	r.filtersMu.Lock()
	delete(r.filters, l)
	r.filtersMu.Unlock()

	return removed
}

// RemoveAll unregisters each listener and reports whether any was present
func (r *Registry[L, K]) RemoveAll(listeners []L) bool {
	any := false
	for _, l := range listeners {
		if r.Remove(l) {
			any = true
		}
	}
	return any
}

// Contains reports whether a listener is registered
func (r *Registry[L, K]) Contains(l L) bool {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	return r.contains(l)
}

// contains must be called with listenersMu held
func (r *Registry[L, K]) contains(l L) bool {
	for _, existing := range r.listeners {
		if existing == l {
			return true
		}
	}
	return false
}

// Clear removes every listener
func (r *Registry[L, K]) Clear() {
	r.listenersMu.Lock()
	r.listeners = nil
	r.listenersMu.Unlock()

	r.filtersMu.Lock()
	r.filters = make(map[L]map[K]struct{})
	r.filtersMu.Unlock()
}

// Size returns the number of registered listeners
func (r *Registry[L, K]) Size() int {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	return len(r.listeners)
}

// IsEmpty reports whether no listeners are registered
func (r *Registry[L, K]) IsEmpty() bool {
	return r.Size() == 0
}

// Listeners returns a point-in-time snapshot in registration order.
// The snapshot is safe to iterate while the registry is mutated
// concurrently: it never observes a later add and never omits a listener
// that was present when it was taken.
func (r *Registry[L, K]) Listeners() []L {
	r.listenersMu.RLock()
	defer r.listenersMu.RUnlock()
	return append([]L(nil), r.listeners...)
}

// wants reports whether a listener's filter set admits the kind
func (r *Registry[L, K]) wants(l L, kind K) bool {
	r.filtersMu.RLock()
	defer r.filtersMu.RUnlock()

	set, ok := r.filters[l]
	if !ok || len(set) == 0 {
		return true
	}
	_, want := set[kind]
	return want
}

// Fire delivers one event to every listener whose filter set is empty or
// contains kind, in snapshot order. The deliver callback receives each
// matching listener; it runs outside the registry's locks, so listeners may
// re-enter the registry freely.
func (r *Registry[L, K]) Fire(kind K, deliver func(L)) {
	for _, l := range r.Listeners() {
		if r.wants(l, kind) {
			deliver(l)
		}
	}
}

// FireAsync dispatches the whole broadcast as a single background unit so the
// caller never waits on slow listeners. A panicking listener is reported and
// skipped; it never aborts delivery to the rest of the snapshot.
func (r *Registry[L, K]) FireAsync(kind K, deliver func(L)) {
	snapshot := r.Listeners()
	go func() {
		for _, l := range snapshot {
			if r.wants(l, kind) {
				r.deliverSafely(l, deliver)
			}
		}
	}()
}

func (r *Registry[L, K]) deliverSafely(l L, deliver func(L)) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Warn("Listener panicked during dispatch",
				zap.Any("panic", rec),
			)
		}
	}()
	deliver(l)
}
