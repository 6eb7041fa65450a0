package relay

import "errors"

// Sentinel errors for relay operations.
var (
	// ErrValidation is returned when an inbound event is malformed or misses required fields.
	ErrValidation = errors.New("invalid event")

	// ErrUnknownEvent is returned for an inbound event name the relay does not handle.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrNotJoined is returned when a room-scoped event arrives before joinRoom.
	ErrNotJoined = errors.New("connection has not joined a room")

	// ErrSessionClosed is returned for events handled after the session disconnected.
	ErrSessionClosed = errors.New("session is closed")

	// ErrPersistence is returned when a message could not be stored. The message is not broadcast.
	ErrPersistence = errors.New("message could not be persisted")

	// ErrPersistenceReadDegraded marks a history read failure that was replaced by an empty history.
	ErrPersistenceReadDegraded = errors.New("history unavailable")

	// ErrTargetUnreachable is returned when a signaling target is not registered or its transport is gone.
	ErrTargetUnreachable = errors.New("signaling target unreachable")

	// ErrTransportClosed is returned by a transport that no longer accepts frames.
	ErrTransportClosed = errors.New("transport closed")

	// ErrSendBufferFull is returned when a connection's outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Error codes sent to clients in "error" events.
const (
	CodeValidation  = "validation_error"
	CodeNotJoined   = "not_joined"
	CodePersistence = "persistence_error"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal_error"
)

// ErrorCode maps an error to the code reported to the client.
// It returns "" for errors that are never surfaced, such as an unreachable signaling target.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTargetUnreachable), errors.Is(err, ErrSessionClosed):
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownEvent):
		return CodeValidation
	case errors.Is(err, ErrNotJoined):
		return CodeNotJoined
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	default:
		return CodeInternal
	}
}
