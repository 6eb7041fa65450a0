package history

import (
	"time"

	domain "github.com/example/roomrelay/domain/relay"
)

// Service names registered by the history module.
const (
	ServiceAppend = "append"
	ServiceRecent = "recent"
	ServiceDelete = "delete"
	ServiceCount  = "count"
)

// AppendRequest is the request for storing a message. An empty ID is assigned
// by the service. A non-zero Deadline bounds the write on the handler side.
type AppendRequest struct {
	ID       string    `json:"id,omitempty"`
	Room     string    `json:"room"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	Kind     string    `json:"kind"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// AppendResponse is the response for storing a message.
type AppendResponse struct {
	Message domain.Message `json:"message"`
}

// RecentRequest is the request for recent history.
type RecentRequest struct {
	Room  string `json:"room"`
	Limit int    `json:"limit"`
}

// RecentResponse is the response for recent history.
type RecentResponse struct {
	Messages []domain.Message `json:"messages"`
}

// DeleteRequest withdraws one message.
type DeleteRequest struct {
	Room string `json:"room"`
	ID   string `json:"id"`
}

// DeleteResponse reports whether a stored message was removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// CountRequest is the request for a room's stored message count.
type CountRequest struct {
	Room string `json:"room"`
}

// CountResponse is the response for a room's stored message count.
type CountResponse struct {
	Total int64 `json:"total"`
}
