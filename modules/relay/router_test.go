package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_Relay(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r)

	alice, bob := &fakeTransport{}, &fakeTransport{}
	r.Register("a", "alice", "lobby", alice)
	r.Register("b", "bob", "lobby", bob)

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	err := router.Relay("b", Signal{Event: EventReceiveOffer, Key: "offer", Payload: sdp}, "a")
	require.NoError(t, err)

	assert.Empty(t, alice.events())
	require.Equal(t, []string{EventReceiveOffer}, bob.events())

	var got struct {
		Offer json.RawMessage `json:"offer"`
		From  string          `json:"from"`
		Name  string          `json:"name"`
	}
	bob.last(t, EventReceiveOffer, &got)
	assert.JSONEq(t, string(sdp), string(got.Offer))
	assert.Equal(t, "a", got.From)
	assert.Equal(t, "alice", got.Name)

	assert.Equal(t, RouterStats{Relayed: 1}, router.Stats())
}

func TestRouter_Unreachable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *Registry)
	}{
		{
			name:  "target never registered",
			setup: func(r *Registry) {},
		},
		{
			name: "target unregistered",
			setup: func(r *Registry) {
				r.Register("b", "bob", "lobby", &fakeTransport{})
				r.Unregister("b")
			},
		},
		{
			name: "target transport closed",
			setup: func(r *Registry) {
				tr := &fakeTransport{}
				tr.close()
				r.Register("b", "bob", "lobby", tr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			router := NewRouter(r)
			r.Register("a", "alice", "lobby", &fakeTransport{})
			tt.setup(r)

			err := router.Relay("b", Signal{Event: EventIncomingCall, Key: "signal", Payload: json.RawMessage(`{}`)}, "a")
			assert.ErrorIs(t, err, ErrTargetUnreachable)
			assert.Equal(t, uint64(1), router.Stats().Unreachable)
		})
	}
}

func TestRouter_CrossRoom(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r)

	bob := &fakeTransport{}
	r.Register("a", "alice", "lobby", &fakeTransport{})
	r.Register("b", "bob", "party", bob)

	// Signaling is addressed by connection, not by room.
	err := router.Relay("b", Signal{Event: EventReceiveICE, Key: "candidate", Payload: json.RawMessage(`"c"`)}, "a")
	require.NoError(t, err)
	assert.Len(t, bob.events(), 1)
}
