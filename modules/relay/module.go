package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/example/roomrelay/events"
	"github.com/example/roomrelay/modules/history"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// errStoreNotConnected is returned while the history dependency has not been wired.
var errStoreNotConnected = errors.New("history service not connected")

// Module hosts the relay core and publishes relay activity on the event bus.
type Module struct {
	controller *Controller
	store      MessageStore
	eventBus   mono.EventBus
	logger     types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ MessageStore               = (*Module)(nil)
	_ Recorder                   = (*Module)(nil)
)

// NewModule creates the relay module. The controller exists immediately so
// other modules can be handed it before the application starts.
func NewModule(cfg Config, logger types.Logger) *Module {
	m := &Module{logger: logger}
	m.controller = NewController(m, m, cfg, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Controller returns the session controller.
func (m *Module) Controller() *Controller {
	return m.controller
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"history"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "history" {
		m.store = history.NewAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.MessagePostedV1.ToBase(),
		events.GroupCallStartedV1.ToBase(),
	}
}

// Start verifies the history dependency.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("history dependency not set")
	}
	m.logger.Info("Relay module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Relay module stopped", "connections", m.controller.Registry().Len())
	return nil
}

// Health reports presence counts and relay outcomes.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.store != nil,
		Message: "operational",
		Details: map[string]any{
			"connections": m.controller.Registry().Len(),
			"rooms":       len(m.controller.Registry().Rooms()),
			"signaling":   m.controller.Router().Stats(),
		},
	}
}

// Append forwards to the history service.
func (m *Module) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if m.store == nil {
		return domain.Message{}, errStoreNotConnected
	}
	return m.store.Append(ctx, msg)
}

// Recent forwards to the history service.
func (m *Module) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if m.store == nil {
		return nil, errStoreNotConnected
	}
	return m.store.Recent(ctx, room, limit)
}

// Delete forwards to the history service.
func (m *Module) Delete(ctx context.Context, room, id string) error {
	if m.store == nil {
		return errStoreNotConnected
	}
	return m.store.Delete(ctx, room, id)
}

// UserJoined publishes a UserJoined event.
func (m *Module) UserJoined(member domain.Member) {
	m.publish("UserJoined", func(bus mono.EventBus) error {
		return events.UserJoinedV1.Publish(bus, events.UserJoinedEvent{
			ConnectionID: member.ConnectionID,
			Room:         member.Room,
			Name:         member.Name,
			Timestamp:    time.Now(),
		}, nil)
	})
}

// UserLeft publishes a UserLeft event.
func (m *Module) UserLeft(member domain.Member) {
	m.publish("UserLeft", func(bus mono.EventBus) error {
		return events.UserLeftV1.Publish(bus, events.UserLeftEvent{
			ConnectionID: member.ConnectionID,
			Room:         member.Room,
			Name:         member.Name,
			Timestamp:    time.Now(),
		}, nil)
	})
}

// MessagePosted publishes a MessagePosted event.
func (m *Module) MessagePosted(msg domain.Message) {
	m.publish("MessagePosted", func(bus mono.EventBus) error {
		return events.MessagePostedV1.Publish(bus, events.MessagePostedEvent{
			MessageID: msg.ID,
			Room:      msg.Room,
			Name:      msg.Name,
			Kind:      msg.Kind,
			Timestamp: msg.Time,
		}, nil)
	})
}

// GroupCallStarted publishes a GroupCallStarted event.
func (m *Module) GroupCallStarted(from domain.Member, invited int) {
	m.publish("GroupCallStarted", func(bus mono.EventBus) error {
		return events.GroupCallStartedV1.Publish(bus, events.GroupCallStartedEvent{
			ConnectionID: from.ConnectionID,
			Room:         from.Room,
			Invited:      invited,
			Timestamp:    time.Now(),
		}, nil)
	})
}

func (m *Module) publish(name string, fn func(mono.EventBus) error) {
	if m.eventBus == nil {
		return
	}
	if err := fn(m.eventBus); err != nil {
		m.logger.Warn("Failed to publish event", "event", name, "error", err)
	}
}
