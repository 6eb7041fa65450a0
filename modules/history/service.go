package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultRetention is how long messages are kept.
const DefaultRetention = 7 * 24 * time.Hour

// MaxRecentLimit bounds a single history read.
const MaxRecentLimit = 500

// Sentinel errors for history operations.
var (
	// ErrInvalidRoom is returned when the room is empty.
	ErrInvalidRoom = errors.New("room is required")

	// ErrInvalidLimit is returned when a history limit is out of range.
	ErrInvalidLimit = errors.New("limit out of range")
)

// Service stores room messages and serves bounded recent history.
type Service struct {
	repo      *Repository
	cache     *Cache
	retention time.Duration
	now       func() time.Time
	sfGroup   singleflight.Group // Prevents cache stampede
	logger    types.Logger
}

// NewService creates a history service. cache may be nil.
func NewService(repo *Repository, cache *Cache, retention time.Duration, logger types.Logger) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Append stores a message, stamping its creation time and expiry. An empty id
// is replaced with a new UUIDv7.
func (s *Service) Append(ctx context.Context, id, room, name, text, kind string) (domain.Message, error) {
	if strings.TrimSpace(room) == "" {
		return domain.Message{}, ErrInvalidRoom
	}
	if kind == "" {
		kind = domain.KindText
	}

	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return domain.Message{}, fmt.Errorf("failed to generate message id: %w", err)
		}
		id = generated.String()
	}

	now := s.now().UTC()
	msg := &Message{
		ID:        id,
		Room:      room,
		Name:      name,
		Text:      text,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(s.retention),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return domain.Message{}, err
	}

	s.invalidate(ctx, room)
	return msg.ToDomain(), nil
}

// Delete removes one message and reports whether it was stored.
func (s *Service) Delete(ctx context.Context, room, id string) (bool, error) {
	if strings.TrimSpace(room) == "" {
		return false, ErrInvalidRoom
	}
	deleted, err := s.repo.Delete(ctx, room, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidate(ctx, room)
	}
	return deleted, nil
}

func (s *Service) invalidate(ctx context.Context, room string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateRoom(ctx, room); err != nil {
		s.logger.Warn("Failed to invalidate history cache", "room", room, "error", err)
	}
}

// Recent returns up to limit messages of room in ascending time order.
// Uses singleflight to collapse concurrent cache misses for the same room and limit.
// A database read is cached only if no write to the room happened meanwhile.
func (s *Service) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	if strings.TrimSpace(room) == "" {
		return nil, ErrInvalidRoom
	}
	if limit <= 0 || limit > MaxRecentLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	if s.cache != nil {
		msgs, found, err := s.cache.GetRecent(ctx, room, limit)
		if err != nil {
			s.logger.Warn("History cache read failed", "room", room, "error", err)
		} else if found {
			return msgs, nil
		}
	}

	key := fmt.Sprintf("%s\x00%d", room, limit)
	result, err, _ := s.sfGroup.Do(key, func() (any, error) {
		var generation int64
		cacheable := false
		if s.cache != nil {
			gen, err := s.cache.Generation(ctx, room)
			if err != nil {
				s.logger.Warn("History cache generation read failed", "room", room, "error", err)
			} else {
				generation, cacheable = gen, true
			}
		}

		rows, err := s.repo.Recent(ctx, room, limit, s.now().UTC())
		if err != nil {
			return nil, err
		}
		msgs := make([]domain.Message, 0, len(rows))
		for _, row := range rows {
			msgs = append(msgs, row.ToDomain())
		}

		if cacheable {
			err := s.cache.SetRecent(ctx, room, limit, generation, msgs)
			switch {
			case errors.Is(err, ErrStaleSnapshot):
				s.logger.Debug("Skipped caching stale history", "room", room)
			case err != nil:
				s.logger.Warn("History cache write failed", "room", room, "error", err)
			}
		}
		return msgs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Message), nil
}

// PurgeExpired removes messages past their retention.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now().UTC())
}

// Count returns the number of unexpired messages stored in room.
func (s *Service) Count(ctx context.Context, room string) (int64, error) {
	if strings.TrimSpace(room) == "" {
		return 0, ErrInvalidRoom
	}
	return s.repo.CountByRoom(ctx, room, s.now().UTC())
}
