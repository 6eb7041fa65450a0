package relay

import "time"

// Message kinds.
const (
	KindText   = "text"
	KindImage  = "image"
	KindSystem = "system"
)

// Member is one joined connection as seen by other room members.
type Member struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	Room         string `json:"room"`
}

// Message is a chat or image message posted to a room.
// System notices share the shape but are never persisted and carry no ID.
type Message struct {
	ID   string    `json:"id,omitempty"`
	Room string    `json:"room"`
	Name string    `json:"name"`
	Text string    `json:"text"`
	Kind string    `json:"kind"`
	Time time.Time `json:"time"`
}
