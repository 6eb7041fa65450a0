package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter reads room counters through the activity service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("activity: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Stats returns the counters of room, or of every room when room is empty.
func (a *Adapter) Stats(ctx context.Context, room string) ([]RoomStats, error) {
	req := StatsRequest{Room: room}
	var resp StatsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceStats,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return resp.Rooms, nil
}
