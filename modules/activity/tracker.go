package activity

import (
	"sort"
	"sync"
	"time"
)

// RoomStats counts what happened in one room since startup.
type RoomStats struct {
	Room         string    `json:"room"`
	Joins        uint64    `json:"joins"`
	Leaves       uint64    `json:"leaves"`
	Messages     uint64    `json:"messages"`
	Images       uint64    `json:"images"`
	GroupCalls   uint64    `json:"group_calls"`
	LastActivity time.Time `json:"last_activity"`
}

// Tracker aggregates relay events into per-room counters.
type Tracker struct {
	mu    sync.RWMutex
	rooms map[string]*RoomStats
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		rooms: make(map[string]*RoomStats),
	}
}

func (t *Tracker) room(name string, at time.Time) *RoomStats {
	stats, ok := t.rooms[name]
	if !ok {
		stats = &RoomStats{Room: name}
		t.rooms[name] = stats
	}
	if at.After(stats.LastActivity) {
		stats.LastActivity = at
	}
	return stats
}

// Joined records a join.
func (t *Tracker) Joined(room string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.room(room, at).Joins++
}

// Left records a departure.
func (t *Tracker) Left(room string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.room(room, at).Leaves++
}

// Posted records a message; image messages are counted separately as well.
func (t *Tracker) Posted(room string, image bool, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.room(room, at)
	stats.Messages++
	if image {
		stats.Images++
	}
}

// GroupCall records a group call start.
func (t *Tracker) GroupCall(room string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.room(room, at).GroupCalls++
}

// Snapshot returns a copy of all room counters sorted by room.
func (t *Tracker) Snapshot() []RoomStats {
	t.mu.RLock()
	result := make([]RoomStats, 0, len(t.rooms))
	for _, stats := range t.rooms {
		result = append(result, *stats)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Room < result[j].Room
	})
	return result
}

// Room returns a copy of one room's counters.
func (t *Tracker) Room(room string) (RoomStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stats, ok := t.rooms[room]
	if !ok {
		return RoomStats{}, false
	}
	return *stats, true
}
