// Package nameservice maps task types to live worker endpoints,
// generalizing the Majordomo broker's service/worker tables
// (services map[string]*Service, workers map[string]*brokerWorker,
// heartbeat-driven expiry) from a ZeroMQ service registry into a
// standalone UDP lookup service. At most one worker is addressable per
// type at any moment: a later REGISTER_WORKER for the same type
// replaces the previous entry outright.
package nameservice

import (
	"sync"
	"time"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

// entry is one registry row, the nameservice analog of a Majordomo
// brokerWorker.
type entry struct {
	address  string
	lastSeen time.Time
}

func (e *entry) alive(now time.Time) bool {
	return now.Sub(e.lastSeen) <= protocol.HeartbeatTimeout
}

// Registry is a mutex-guarded type->entry table. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register inserts or replaces the entry for typ with address, setting
// last_seen to now.
func (r *Registry) Register(typ, address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[typ] = &entry{address: address, lastSeen: time.Now()}
}

// Heartbeat refreshes last_seen for every entry whose address matches,
// keyed on the sender's address rather than its claimed type: a
// heartbeat updates whichever entry that address currently owns, even
// if it arrived referencing a type that was since replaced. It returns
// the number of entries updated.
func (r *Registry) Heartbeat(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	updated := 0
	for _, e := range r.entries {
		if e.address == address {
			e.lastSeen = now
			updated++
		}
	}
	return updated
}

// Deregister removes every entry whose address matches, regardless of
// the type it was last registered under. It returns the number removed.
func (r *Registry) Deregister(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for typ, e := range r.entries {
		if e.address == address {
			delete(r.entries, typ)
			removed++
		}
	}
	return removed
}

// Lookup returns the live address registered for typ.
func (r *Registry) Lookup(typ string) (address string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.entries[typ]
	if !found || !e.alive(time.Now()) {
		return "", false
	}
	return e.address, true
}

// List returns every live entry, the data LIST_WORKERS and the monitor
// surface report. Expired entries are omitted per the lazy-liveness
// design: they are still present in the map until reaped, but a dead
// entry is never listed or returned by Lookup.
func (r *Registry) List() []protocol.WorkerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	out := make([]protocol.WorkerEntry, 0, len(r.entries))
	for typ, e := range r.entries {
		if !e.alive(now) {
			continue
		}
		out = append(out, protocol.WorkerEntry{Type: typ, Address: e.address})
	}
	return out
}

// Reap deletes entries that have been dead for longer than grace past
// their heartbeat timeout. This is memory hygiene only: Lookup and List
// already treat an expired entry as absent, so reaping never changes an
// observable answer, only how long a stale entry's bytes are retained.
func (r *Registry) Reap(grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-protocol.HeartbeatTimeout - grace)
	for typ, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, typ)
		}
	}
}
