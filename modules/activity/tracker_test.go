package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/example/roomrelay/events"
	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

func TestTracker_Counters(t *testing.T) {
	tracker := NewTracker()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tracker.Joined("lobby", base)
	tracker.Joined("lobby", base.Add(time.Second))
	tracker.Posted("lobby", false, base.Add(2*time.Second))
	tracker.Posted("lobby", true, base.Add(3*time.Second))
	tracker.GroupCall("lobby", base.Add(4*time.Second))
	tracker.Left("lobby", base.Add(time.Second)) // late, out-of-order event

	stats, ok := tracker.Room("lobby")
	if !ok {
		t.Fatal("Room() lobby not tracked")
	}

	want := RoomStats{
		Room:         "lobby",
		Joins:        2,
		Leaves:       1,
		Messages:     2,
		Images:       1,
		GroupCalls:   1,
		LastActivity: base.Add(4 * time.Second),
	}
	if stats != want {
		t.Errorf("Room() = %+v, want %+v", stats, want)
	}

	if _, ok := tracker.Room("kitchen"); ok {
		t.Error("Room() kitchen should not be tracked")
	}
}

func TestTracker_SnapshotSorted(t *testing.T) {
	tracker := NewTracker()
	now := time.Now()
	for _, room := range []string{"zoo", "attic", "lobby"} {
		tracker.Joined(room, now)
	}

	snapshot := tracker.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(snapshot))
	}
	for i, want := range []string{"attic", "lobby", "zoo"} {
		if snapshot[i].Room != want {
			t.Errorf("Snapshot()[%d].Room = %q, want %q", i, snapshot[i].Room, want)
		}
	}

	// Snapshots are copies.
	snapshot[0].Joins = 100
	if stats, _ := tracker.Room("attic"); stats.Joins != 1 {
		t.Errorf("Snapshot() leaked internal state: joins = %d", stats.Joins)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Posted("lobby", false, time.Now())
			_ = tracker.Snapshot()
		}()
	}
	wg.Wait()

	if stats, _ := tracker.Room("lobby"); stats.Messages != 100 {
		t.Errorf("Messages = %d, want 100", stats.Messages)
	}
}

func TestModule_EventHandlers(t *testing.T) {
	m := NewModule(&mockLogger{})
	ctx := context.Background()
	now := time.Now()

	if err := m.handleUserJoined(ctx, events.UserJoinedEvent{Room: "lobby", Timestamp: now}, nil); err != nil {
		t.Fatalf("handleUserJoined() error = %v", err)
	}
	if err := m.handleMessagePosted(ctx, events.MessagePostedEvent{Room: "lobby", Kind: domain.KindImage, Timestamp: now}, nil); err != nil {
		t.Fatalf("handleMessagePosted() error = %v", err)
	}
	if err := m.handleGroupCallStarted(ctx, events.GroupCallStartedEvent{Room: "lobby", Invited: 2, Timestamp: now}, nil); err != nil {
		t.Fatalf("handleGroupCallStarted() error = %v", err)
	}
	if err := m.handleUserLeft(ctx, events.UserLeftEvent{Room: "lobby", Timestamp: now}, nil); err != nil {
		t.Fatalf("handleUserLeft() error = %v", err)
	}

	resp, err := m.handleStats(ctx, StatsRequest{Room: "lobby"}, nil)
	if err != nil {
		t.Fatalf("handleStats() error = %v", err)
	}
	if len(resp.Rooms) != 1 {
		t.Fatalf("handleStats() rooms = %d, want 1", len(resp.Rooms))
	}
	got := resp.Rooms[0]
	if got.Joins != 1 || got.Leaves != 1 || got.Images != 1 || got.GroupCalls != 1 {
		t.Errorf("handleStats() = %+v", got)
	}

	resp, err = m.handleStats(ctx, StatsRequest{Room: "nowhere"}, nil)
	if err != nil {
		t.Fatalf("handleStats() error = %v", err)
	}
	if resp.Rooms == nil || len(resp.Rooms) != 0 {
		t.Errorf("handleStats() for unknown room = %#v, want empty", resp.Rooms)
	}

	if !m.Health(ctx).Healthy {
		t.Error("Health() should be healthy")
	}
}
