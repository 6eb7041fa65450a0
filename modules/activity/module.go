package activity

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/example/roomrelay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module consumes relay events and serves per-room activity counters.
type Module struct {
	tracker *Tracker
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		tracker: NewTracker(),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// Tracker returns the underlying counters.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}

// RegisterEventConsumers registers event handlers for relay events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessagePostedV1, m.handleMessagePosted, m,
	); err != nil {
		return fmt.Errorf("failed to register MessagePosted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.GroupCallStartedV1, m.handleGroupCallStarted, m,
	); err != nil {
		return fmt.Errorf("failed to register GroupCallStarted consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "UserJoined, UserLeft, MessagePosted, GroupCallStarted")
	return nil
}

// RegisterServices registers the stats request-reply service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceStats, json.Unmarshal, json.Marshal, m.handleStats,
	); err != nil {
		return fmt.Errorf("failed to register stats service: %w", err)
	}
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"tracked_rooms": len(m.tracker.Snapshot()),
		},
	}
}

func (m *Module) handleUserJoined(_ context.Context, event events.UserJoinedEvent, _ *mono.Msg) error {
	m.tracker.Joined(event.Room, event.Timestamp)
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, event events.UserLeftEvent, _ *mono.Msg) error {
	m.tracker.Left(event.Room, event.Timestamp)
	return nil
}

func (m *Module) handleMessagePosted(_ context.Context, event events.MessagePostedEvent, _ *mono.Msg) error {
	m.tracker.Posted(event.Room, event.Kind == domain.KindImage, event.Timestamp)
	return nil
}

func (m *Module) handleGroupCallStarted(_ context.Context, event events.GroupCallStartedEvent, _ *mono.Msg) error {
	m.tracker.GroupCall(event.Room, event.Timestamp)
	m.logger.Debug("Group call started", "room", event.Room, "invited", event.Invited)
	return nil
}

func (m *Module) handleStats(_ context.Context, req StatsRequest, _ *mono.Msg) (StatsResponse, error) {
	if req.Room == "" {
		return StatsResponse{Rooms: m.tracker.Snapshot()}, nil
	}
	stats, ok := m.tracker.Room(req.Room)
	if !ok {
		return StatsResponse{Rooms: []RoomStats{}}, nil
	}
	return StatsResponse{Rooms: []RoomStats{stats}}, nil
}
