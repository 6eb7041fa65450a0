package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserJoinedEvent is emitted when a connection joins a room.
type UserJoinedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Room         string    `json:"room"`
	Name         string    `json:"name"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a joined connection leaves a room or disconnects.
type UserLeftEvent struct {
	ConnectionID string    `json:"connection_id"`
	Room         string    `json:"room"`
	Name         string    `json:"name"`
	Timestamp    time.Time `json:"timestamp"`
}

// MessagePostedEvent is emitted after a message has been persisted and broadcast.
type MessagePostedEvent struct {
	MessageID string    `json:"message_id"`
	Room      string    `json:"room"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// GroupCallStartedEvent is emitted when a member invites the rest of the room to a call.
type GroupCallStartedEvent struct {
	ConnectionID string    `json:"connection_id"`
	Room         string    `json:"room"`
	Invited      int       `json:"invited"`
	Timestamp    time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"relay",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"relay",
		"UserLeft",
		"v1",
	)

	MessagePostedV1 = helper.EventDefinition[MessagePostedEvent](
		"relay",
		"MessagePosted",
		"v1",
	)

	GroupCallStartedV1 = helper.EventDefinition[GroupCallStartedEvent](
		"relay",
		"GroupCallStarted",
		"v1",
	)
)
