package history

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Adapter calls the history module through its service container.
type Adapter struct {
	container mono.ServiceContainer
}

// NewAdapter creates a new Adapter.
func NewAdapter(container mono.ServiceContainer) *Adapter {
	if container == nil {
		panic("history: ServiceContainer is nil")
	}
	return &Adapter{container: container}
}

// Append stores a message and returns it with its timestamp assigned. The
// caller's deadline travels with the request so the write is abandoned with it.
func (a *Adapter) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	req := AppendRequest{ID: msg.ID, Room: msg.Room, Name: msg.Name, Text: msg.Text, Kind: msg.Kind}
	if deadline, ok := ctx.Deadline(); ok {
		req.Deadline = deadline
	}
	var resp AppendResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceAppend,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return resp.Message, nil
}

// Recent returns up to limit messages of room, oldest first.
func (a *Adapter) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	req := RecentRequest{Room: room, Limit: limit}
	var resp RecentResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRecent,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return resp.Messages, nil
}

// Delete removes one message of room.
func (a *Adapter) Delete(ctx context.Context, room, id string) error {
	req := DeleteRequest{Room: room, ID: id}
	var resp DeleteResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDelete,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Count returns the number of unexpired messages stored for room.
func (a *Adapter) Count(ctx context.Context, room string) (int64, error) {
	req := CountRequest{Room: room}
	var resp CountResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCount,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return resp.Total, nil
}
