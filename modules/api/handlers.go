package api

import (
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/roomrelay/modules/relay"
	"github.com/example/roomrelay/modules/upload"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const maxHistoryLimit = relay.MaxHistoryLimit

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws", websocket.New(m.handleWebSocket, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))

	// Image sharing
	m.app.Post("/upload", m.uploadImage)
	m.app.Get("/uploads/:name", m.serveImage)

	// REST API v1
	api := m.app.Group("/api/v1")
	api.Get("/rooms/:room/members", m.getMembers)
	api.Get("/rooms/:room/history", m.getHistory)
	api.Get("/stats", m.getStats)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:  "healthy",
		Modules: make(map[string]ModuleHealth, len(m.health)),
		Details: map[string]any{
			"connections": m.connectionCount(),
		},
	}

	for name, module := range m.health {
		status := module.Health(c.UserContext())
		response.Modules[name] = ModuleHealth{
			Healthy: status.Healthy,
			Message: status.Message,
			Details: status.Details,
		}
		if !status.Healthy {
			response.Status = "degraded"
		}
	}

	code := fiber.StatusOK
	if response.Status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(response)
}

// uploadImage handles POST /upload with a multipart "image" field.
func (m *Module) uploadImage(c *fiber.Ctx) error {
	service := m.uploads.Service()
	if service == nil {
		return fiber.ErrServiceUnavailable
	}

	header, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "No file uploaded",
		})
	}

	contentType := header.Header.Get(fiber.HeaderContentType)
	if err := upload.ValidateImage(contentType, header.Size); err != nil {
		return uploadError(c, err)
	}

	file, err := header.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to read uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, upload.MaxImageSize+1))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to read uploaded file",
		})
	}

	result, err := service.Upload(c.UserContext(), header.Filename, contentType, data)
	if err != nil {
		return uploadError(c, err)
	}

	m.logger.Info("Image uploaded", "name", result.Name, "size", result.Size, "duration_ms", result.DurationMs)

	return c.JSON(UploadResponse{
		ImageURL:    m.publicURL(c, result.Path),
		Name:        result.Name,
		ContentType: result.ContentType,
		Size:        result.Size,
	})
}

// serveImage handles GET /uploads/:name.
func (m *Module) serveImage(c *fiber.Ctx) error {
	service := m.uploads.Service()
	if service == nil {
		return fiber.ErrServiceUnavailable
	}

	data, contentType, err := service.Open(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, upload.ErrNotFound) || errors.Is(err, upload.ErrInvalidName) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "Image not found",
			})
		}
		return err
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=604800, immutable")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	return c.Send(data)
}

// getMembers handles GET /api/v1/rooms/:room/members.
func (m *Module) getMembers(c *fiber.Ctx) error {
	room, ok := roomParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid room",
		})
	}
	return c.JSON(MembersResponse{
		Room:    room,
		Members: m.relay.MembersOf(room),
	})
}

// getHistory handles GET /api/v1/rooms/:room/history.
func (m *Module) getHistory(c *fiber.Ctx) error {
	room, ok := roomParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid room",
		})
	}

	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	messages, err := m.relay.History(c.UserContext(), room, limit)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "history_unavailable",
			Message: "History is temporarily unavailable",
		})
	}

	total, err := m.counter.Count(c.UserContext(), room)
	if err != nil {
		m.logger.Warn("History count unavailable", "room", room, "error", err)
		total = int64(len(messages))
	}

	return c.JSON(HistoryResponse{
		Room:     room,
		Messages: messages,
		Total:    total,
	})
}

// getStats handles GET /api/v1/stats.
func (m *Module) getStats(c *fiber.Ctx) error {
	rooms, err := m.activity.Stats(c.UserContext(), c.Query("room"))
	if err != nil {
		m.logger.Warn("Activity stats unavailable", "error", err)
	}

	registry := m.relay.Registry()
	return c.JSON(StatsResponse{
		Connections: registry.Len(),
		Rooms:       registry.Rooms(),
		Signaling:   m.relay.Router().Stats(),
		Activity:    rooms,
		GeneratedAt: time.Now(),
	})
}

func (m *Module) publicURL(c *fiber.Ctx, path string) string {
	if m.cfg.PublicBaseURL != "" {
		return strings.TrimRight(m.cfg.PublicBaseURL, "/") + path
	}
	return c.BaseURL() + path
}

func roomParam(c *fiber.Ctx) (string, bool) {
	room, err := url.PathUnescape(c.Params("room"))
	if err != nil || relay.ValidateRoom(room) != nil {
		return "", false
	}
	return room, true
}

// uploadError maps upload failures to HTTP statuses.
func uploadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error:   "upload_rejected",
			Message: "Image exceeds the 5 MB limit",
		})
	case errors.Is(err, upload.ErrNotImage):
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(ErrorResponse{
			Error:   "upload_rejected",
			Message: "Only images are allowed",
		})
	case errors.Is(err, upload.ErrUploadRejected):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "upload_rejected",
			Message: err.Error(),
		})
	default:
		return err
	}
}
