package relay

import (
	"errors"
	"slices"

	"github.com/go-monolith/mono/pkg/types"
)

// Broadcaster fans an event out to the members of a room.
type Broadcaster struct {
	registry *Registry
	logger   types.Logger
}

// NewBroadcaster creates a Broadcaster over a registry.
func NewBroadcaster(registry *Registry, logger types.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// Broadcast delivers event to every member of room except the excluded connections.
// Membership is resolved once per call. Delivery is best-effort: closed transports
// are skipped and full ones drop the frame. It returns the number of accepted deliveries.
func (b *Broadcaster) Broadcast(room, event string, data any, exclude ...string) int {
	frame, err := Encode(event, data)
	if err != nil {
		b.logger.Error("Failed to encode broadcast", "event", event, "room", room, "error", err)
		return 0
	}
	return b.send(b.registry.MembersOf(room), room, event, frame, exclude)
}

// BroadcastTo delivers event to a snapshot taken by the caller.
func (b *Broadcaster) BroadcastTo(members []Entry, event string, data any, exclude ...string) int {
	frame, err := Encode(event, data)
	if err != nil {
		b.logger.Error("Failed to encode broadcast", "event", event, "error", err)
		return 0
	}
	return b.send(members, "", event, frame, exclude)
}

func (b *Broadcaster) send(members []Entry, room, event string, frame []byte, exclude []string) int {
	delivered := 0
	for _, member := range members {
		if slices.Contains(exclude, member.ConnectionID) || member.Transport == nil {
			continue
		}
		err := member.Transport.Send(frame)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrTransportClosed):
		default:
			b.logger.Warn("Dropped broadcast frame",
				"event", event,
				"room", room,
				"connectionID", member.ConnectionID,
				"error", err)
		}
	}
	return delivered
}
