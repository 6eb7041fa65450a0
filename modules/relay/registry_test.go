package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	tr := &fakeTransport{}

	r.Register("c1", "alice", "lobby", tr)

	entry, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", entry.Name)
	assert.Equal(t, "lobby", entry.Room)
	assert.Equal(t, "c1", entry.ConnectionID)
	assert.Same(t, tr, entry.Transport)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_MembersOfJoinOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("c3", "carol", "lobby", &fakeTransport{})
	r.Register("c1", "alice", "lobby", &fakeTransport{})
	r.Register("c2", "bob", "kitchen", &fakeTransport{})
	r.Register("c4", "dave", "lobby", &fakeTransport{})

	members := Members(r.MembersOf("lobby"))
	require.Len(t, members, 3)
	assert.Equal(t, "carol", members[0].Name)
	assert.Equal(t, "alice", members[1].Name)
	assert.Equal(t, "dave", members[2].Name)

	assert.Empty(t, r.MembersOf("nowhere"))
	assert.NotNil(t, r.MembersOf("nowhere"))
}

func TestRegistry_ReRegister(t *testing.T) {
	t.Run("same room keeps position and updates name", func(t *testing.T) {
		r := NewRegistry()
		r.Register("c1", "alice", "lobby", &fakeTransport{})
		r.Register("c2", "bob", "lobby", &fakeTransport{})
		r.Register("c1", "alicia", "lobby", &fakeTransport{})

		members := Members(r.MembersOf("lobby"))
		require.Len(t, members, 2)
		assert.Equal(t, "alicia", members[0].Name)
		assert.Equal(t, "bob", members[1].Name)
	})

	t.Run("new room moves the connection", func(t *testing.T) {
		r := NewRegistry()
		r.Register("c1", "alice", "lobby", &fakeTransport{})
		r.Register("c1", "alice", "kitchen", &fakeTransport{})

		assert.Empty(t, r.MembersOf("lobby"))
		assert.Len(t, r.MembersOf("kitchen"), 1)
		assert.Equal(t, 1, r.Len())
	})
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", "lobby", &fakeTransport{})

	entry, ok := r.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "lobby", entry.Room)

	// Second removal is a no-op.
	_, ok = r.Unregister("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Rooms(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "alice", "lobby", &fakeTransport{})
	r.Register("c2", "bob", "lobby", &fakeTransport{})
	r.Register("c3", "carol", "party", &fakeTransport{})

	assert.Equal(t, map[string]int{"lobby": 2, "party": 1}, r.Rooms())

	r.Unregister("c3")
	assert.Equal(t, map[string]int{"lobby": 2}, r.Rooms())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			r.Register(id, "user", "lobby", &fakeTransport{})
			_ = r.MembersOf("lobby")
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
