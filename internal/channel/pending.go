package channel

import (
	"sync"

	"github.com/muurk/castctl/internal/castv2"
)

// result is the single fulfillment of one pending request: a matching
// response, or the error that ended the wait
type result struct {
	msg *castv2.DecodedMessage
	err error
}

// pendingEntry is the caller's handle on an in-flight request. The channel
// is buffered so the fulfilling side never blocks on a caller that has
// already given up.
type pendingEntry struct {
	id int
	ch chan result
}

// pendingTable tracks in-flight requests by correlation id. Exactly-once
// fulfillment is enforced structurally: an entry can only be fulfilled by
// whoever removes it from the table, and removal happens under the lock.
type pendingTable struct {
	mu      sync.Mutex
	entries map[int]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: make(map[int]*pendingEntry),
	}
}

// add registers a new pending request and returns the caller's handle
func (t *pendingTable) add(id int) *pendingEntry {
	entry := &pendingEntry{
		id: id,
		ch: make(chan result, 1),
	}

	t.mu.Lock()
	t.entries[id] = entry
	t.mu.Unlock()

	return entry
}

// take removes and returns the entry for id. Only the goroutine that wins
// the take may fulfill the entry; a second take for the same id fails.
func (t *pendingTable) take(id int) (*pendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return entry, ok
}

// fulfill delivers a response to the pending request with the matching id
// and reports whether such a request existed
func (t *pendingTable) fulfill(id int, msg *castv2.DecodedMessage) bool {
	entry, ok := t.take(id)
	if !ok {
		return false
	}
	entry.ch <- result{msg: msg}
	return true
}

// failAll drains the table, failing every outstanding request with err.
// Used on disconnect so no caller hangs past the channel's lifetime.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	drained := make([]*pendingEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		drained = append(drained, entry)
	}
	t.entries = make(map[int]*pendingEntry)
	t.mu.Unlock()

	for _, entry := range drained {
		entry.ch <- result{err: err}
	}
}

// size returns the number of outstanding requests
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
