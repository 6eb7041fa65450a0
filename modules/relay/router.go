package relay

import (
	"fmt"
	"sync/atomic"
)

// Router relays signaling payloads to a single live connection.
type Router struct {
	registry    *Registry
	unreachable atomic.Uint64
	relayed     atomic.Uint64
}

// NewRouter creates a Router over a registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Relay delivers sig to target, annotated with the sender's id and display name.
// The payload itself is never inspected.
func (r *Router) Relay(target string, sig Signal, sender string) error {
	entry, ok := r.registry.Get(target)
	if !ok || entry.Transport == nil {
		r.unreachable.Add(1)
		return fmt.Errorf("%w: %s", ErrTargetUnreachable, target)
	}

	name := ""
	if from, ok := r.registry.Get(sender); ok {
		name = from.Name
	}

	frame, err := Encode(sig.Event, map[string]any{
		sig.Key: sig.Payload,
		"from":  sender,
		"name":  name,
	})
	if err != nil {
		return err
	}

	if err := entry.Transport.Send(frame); err != nil {
		r.unreachable.Add(1)
		return fmt.Errorf("%w: %s: %v", ErrTargetUnreachable, target, err)
	}
	r.relayed.Add(1)
	return nil
}

// RouterStats counts relay outcomes.
type RouterStats struct {
	Relayed     uint64 `json:"relayed"`
	Unreachable uint64 `json:"unreachable"`
}

// Stats returns the relay counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Relayed:     r.relayed.Load(),
		Unreachable: r.unreachable.Load(),
	}
}
