package relay

import (
	"sort"
	"sync"

	domain "github.com/example/roomrelay/domain/relay"
)

// Entry is a registered connection together with its transport.
type Entry struct {
	domain.Member
	Transport Transport `json:"-"`

	seq uint64
}

// Registry tracks which live connection is present in which room.
// All access goes through one mutex; callers only ever see copies.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
	seq     uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register inserts or replaces the entry for a connection.
// Re-registering into the same room keeps the original join position.
func (r *Registry) Register(id, name, room string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.entries[id]
	seq := prev.seq
	if !ok || prev.Room != room {
		r.seq++
		seq = r.seq
	}

	r.entries[id] = Entry{
		Member: domain.Member{
			ConnectionID: id,
			Name:         name,
			Room:         room,
		},
		Transport: t,
		seq:       seq,
	}
}

// Unregister removes the entry for a connection and returns it.
// Removing an absent connection is a no-op.
func (r *Registry) Unregister(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return entry, ok
}

// Get returns the entry for a connection.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	return entry, ok
}

// MembersOf returns a snapshot of the room's entries in join order.
func (r *Registry) MembersOf(room string) []Entry {
	r.mu.Lock()
	members := make([]Entry, 0, 8)
	for _, entry := range r.entries {
		if entry.Room == room {
			members = append(members, entry)
		}
	}
	r.mu.Unlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].seq < members[j].seq
	})
	return members
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Rooms returns the member count of every non-empty room.
func (r *Registry) Rooms() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make(map[string]int)
	for _, entry := range r.entries {
		rooms[entry.Room]++
	}
	return rooms
}

// Members strips transports from a snapshot.
func Members(entries []Entry) []domain.Member {
	members := make([]domain.Member, 0, len(entries))
	for _, entry := range entries {
		members = append(members, entry.Member)
	}
	return members
}
