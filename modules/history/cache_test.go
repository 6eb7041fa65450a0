package history

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/redis/go-redis/v9"
)

// Requires Redis running on localhost:6379
const testRedisAddr = "localhost:6379"

func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	prefix := "roomrelay:test:" + t.Name() + ":"
	cache := NewCache(client, prefix, time.Minute)
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})
	return cache
}

func TestCache_SetGetInvalidate(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	if _, found, err := cache.GetRecent(ctx, "lobby", 50); err != nil || found {
		t.Fatalf("GetRecent() on empty cache = found %v, err %v", found, err)
	}

	msgs := []domain.Message{
		{ID: "1", Room: "lobby", Name: "alice", Text: "hi", Kind: domain.KindText, Time: time.Now().UTC()},
	}
	if err := cache.SetRecent(ctx, "lobby", 50, 0, msgs); err != nil {
		t.Fatalf("SetRecent() error = %v", err)
	}

	got, found, err := cache.GetRecent(ctx, "lobby", 50)
	if err != nil || !found {
		t.Fatalf("GetRecent() = found %v, err %v", found, err)
	}
	if len(got) != 1 || got[0].Text != "hi" {
		t.Errorf("GetRecent() = %+v", got)
	}

	// Another limit is a separate entry of the same room.
	if _, found, _ := cache.GetRecent(ctx, "lobby", 10); found {
		t.Error("GetRecent() limit 10 should miss")
	}

	if err := cache.InvalidateRoom(ctx, "lobby"); err != nil {
		t.Fatalf("InvalidateRoom() error = %v", err)
	}
	if _, found, _ := cache.GetRecent(ctx, "lobby", 50); found {
		t.Error("GetRecent() after invalidate should miss")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 3 {
		t.Errorf("Stats() = %+v, want 1 hit and 3 misses", stats)
	}
}

func TestService_RecentUsesCache(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	svc := NewService(NewRepository(setupTestDB(t)), cache, time.Hour, &mockLogger{})
	if _, err := svc.Append(ctx, "", "lobby", "alice", "first", ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		msgs, err := svc.Recent(ctx, "lobby", 50)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(msgs))
		}
	}
	if hits := cache.Stats().Hits; hits != 2 {
		t.Errorf("expected 2 cache hits, got %d", hits)
	}

	// Appending invalidates the room.
	if _, err := svc.Append(ctx, "", "lobby", "alice", "second", ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	msgs, err := svc.Recent(ctx, "lobby", 50)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages after append, got %d", len(msgs))
	}
}

func TestCache_SetRecentRejectsStaleGeneration(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	gen, err := cache.Generation(ctx, "lobby")
	if err != nil {
		t.Fatalf("Generation() error = %v", err)
	}

	// A write lands between the snapshot read and the cache fill.
	if err := cache.InvalidateRoom(ctx, "lobby"); err != nil {
		t.Fatalf("InvalidateRoom() error = %v", err)
	}
	next, err := cache.Generation(ctx, "lobby")
	if err != nil {
		t.Fatalf("Generation() error = %v", err)
	}
	if next != gen+1 {
		t.Errorf("Generation() after invalidate = %d, want %d", next, gen+1)
	}

	err = cache.SetRecent(ctx, "lobby", 50, gen, []domain.Message{})
	if !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("SetRecent() error = %v, want ErrStaleSnapshot", err)
	}
	if _, found, _ := cache.GetRecent(ctx, "lobby", 50); found {
		t.Error("GetRecent() should miss after a rejected write")
	}
	if failures := cache.Stats().Errors; failures != 0 {
		t.Errorf("stale writes should not count as failures, got %d", failures)
	}

	if err := cache.SetRecent(ctx, "lobby", 50, next, []domain.Message{}); err != nil {
		t.Fatalf("SetRecent() at current generation error = %v", err)
	}
	if _, found, _ := cache.GetRecent(ctx, "lobby", 50); !found {
		t.Error("GetRecent() should hit after a current write")
	}
}

func TestService_RecentNotOverwrittenByStaleSnapshot(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	svc := NewService(NewRepository(setupTestDB(t)), cache, time.Hour, &mockLogger{})
	if _, err := svc.Append(ctx, "", "lobby", "alice", "first", ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// A reader takes its generation and snapshot before the next append commits.
	gen, err := cache.Generation(ctx, "lobby")
	if err != nil {
		t.Fatalf("Generation() error = %v", err)
	}
	snapshot, err := svc.Recent(ctx, "lobby", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}

	if _, err := svc.Append(ctx, "", "lobby", "alice", "hi", ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	// The reader's late cache fill is rejected.
	if err := cache.SetRecent(ctx, "lobby", 10, gen, snapshot); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("SetRecent() error = %v, want ErrStaleSnapshot", err)
	}

	msgs, err := svc.Recent(ctx, "lobby", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 2 || msgs[1].Text != "hi" {
		t.Errorf("Recent() = %+v, want the appended message last", msgs)
	}
}
