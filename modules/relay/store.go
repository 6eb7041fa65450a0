package relay

import (
	"context"
	"fmt"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// MessageStore is the persistence port used by the relay.
type MessageStore interface {
	// Append persists msg and returns it with its timestamp assigned.
	// An ID set by the caller is kept; the store assigns one otherwise.
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	// Recent returns up to limit messages of room in ascending time order.
	Recent(ctx context.Context, room string, limit int) ([]domain.Message, error)
	// Delete removes the message id of room. Deleting an unknown id is not an error.
	Delete(ctx context.Context, room, id string) error
}

// historyStore bounds every persistence call with a timeout and classifies failures.
type historyStore struct {
	store   MessageStore
	timeout time.Duration
	logger  types.Logger
}

// append stores msg under a fresh ID. When the store reports a failure the
// message is withdrawn by ID, so a write that lands after the deadline is
// never served as history.
func (h historyStore) append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id.String()

	appendCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	stored, err := h.store.Append(appendCtx, msg)
	if err != nil {
		h.withdraw(ctx, msg)
		return domain.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return stored, nil
}

func (h historyStore) withdraw(ctx context.Context, msg domain.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	if err := h.store.Delete(ctx, msg.Room, msg.ID); err != nil {
		h.logger.Warn("Failed to withdraw undelivered message", "room", msg.Room, "id", msg.ID, "error", err)
	}
}

// recent never returns a nil slice. On failure the returned error wraps
// ErrPersistenceReadDegraded and the history is empty.
func (h historyStore) recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	msgs, err := h.store.Recent(ctx, room, limit)
	if err != nil {
		return []domain.Message{}, fmt.Errorf("%w: %v", ErrPersistenceReadDegraded, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}
