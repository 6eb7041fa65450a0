package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository provides access to message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new message repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create saves a new message to the database. The insert runs in a
// transaction bound to ctx: once ctx is done the row is rolled back.
func (r *Repository) Create(ctx context.Context, msg *Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(msg).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Recent returns the newest limit unexpired messages of a room, oldest first.
func (r *Repository) Recent(ctx context.Context, room string, limit int, now time.Time) ([]*Message, error) {
	var msgs []*Message
	err := r.db.WithContext(ctx).
		Where("room = ? AND expires_at > ?", room, now).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// PurgeExpired deletes every message whose retention has elapsed.
func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&Message{})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}
	return result.RowsAffected, nil
}

// Delete removes one message of a room and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, room, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND room = ?", id, room).Delete(&Message{})
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	return result.RowsAffected > 0, nil
}

// CountByRoom returns the number of unexpired messages in a room.
func (r *Repository) CountByRoom(ctx context.Context, room string, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Message{}).
		Where("room = ? AND expires_at > ?", room, now).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
