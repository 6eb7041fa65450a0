package history

import (
	"time"

	domain "github.com/example/roomrelay/domain/relay"
)

// Message is a persisted room message.
type Message struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Room      string    `gorm:"size:100;not null;index:idx_messages_room_created,priority:1" json:"room"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Text      string    `gorm:"size:8192;not null" json:"text"`
	Kind      string    `gorm:"size:16;not null;default:text" json:"kind"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2" json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}

// ToDomain converts the row to the relay message shape.
func (m *Message) ToDomain() domain.Message {
	return domain.Message{
		ID:   m.ID,
		Room: m.Room,
		Name: m.Name,
		Text: m.Text,
		Kind: m.Kind,
		Time: m.CreatedAt,
	}
}
