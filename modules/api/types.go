package api

import (
	"time"

	domain "github.com/example/roomrelay/domain/relay"
	"github.com/example/roomrelay/modules/activity"
	"github.com/example/roomrelay/modules/relay"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string                  `json:"status"`
	Modules map[string]ModuleHealth `json:"modules"`
	Details map[string]any          `json:"details,omitempty"`
}

// ModuleHealth is the health of one module.
type ModuleHealth struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// UploadResponse is returned after a successful image upload.
type UploadResponse struct {
	ImageURL    string `json:"imageUrl"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// MembersResponse lists the members of a room.
type MembersResponse struct {
	Room    string          `json:"room"`
	Members []domain.Member `json:"members"`
}

// HistoryResponse lists recent messages of a room, oldest first.
// Total counts every unexpired message of the room, not just the returned window.
type HistoryResponse struct {
	Room     string           `json:"room"`
	Messages []domain.Message `json:"messages"`
	Total    int64            `json:"total"`
}

// StatsResponse reports presence, signaling and per-room activity.
type StatsResponse struct {
	Connections int                  `json:"connections"`
	Rooms       map[string]int       `json:"rooms"`
	Signaling   relay.RouterStats    `json:"signaling"`
	Activity    []activity.RoomStats `json:"activity"`
	GeneratedAt time.Time            `json:"generatedAt"`
}
