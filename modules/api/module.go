package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/roomrelay/modules/activity"
	"github.com/example/roomrelay/modules/history"
	"github.com/example/roomrelay/modules/relay"
	"github.com/example/roomrelay/modules/upload"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds the HTTP and websocket settings.
type Config struct {
	Addr          string
	AllowOrigins  string
	PublicBaseURL string
	SendBuffer    int
	RatePerSecond float64
	RateBurst     int
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Addr:          ":10000",
		AllowOrigins:  "*",
		SendBuffer:    64,
		RatePerSecond: 10,
		RateBurst:     20,
	}
}

// Module is the HTTP API module with WebSocket support.
type Module struct {
	cfg      Config
	app      *fiber.App
	relay    *relay.Controller
	uploads  *upload.Module
	activity *activity.Adapter
	counter  historyCounter
	health   map[string]mono.HealthCheckableModule
	logger   types.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	conns   sync.Map // connectionID -> *relay.Outbox
}

// historyCounter reports how many messages a room holds.
type historyCounter interface {
	Count(ctx context.Context, room string) (int64, error)
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module.
func NewModule(cfg Config, logger types.Logger) *Module {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.AllowOrigins == "" {
		cfg.AllowOrigins = defaults.AllowOrigins
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaults.RatePerSecond
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaults.RateBurst
	}
	return &Module{
		cfg:    cfg,
		health: make(map[string]mono.HealthCheckableModule),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"activity", "history"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "activity":
		m.activity = activity.NewAdapter(container)
	case "history":
		m.counter = history.NewAdapter(container)
	}
}

// SetRelay sets the session controller (called from main.go).
func (m *Module) SetRelay(controller *relay.Controller) {
	m.relay = controller
}

// SetUploads sets the upload module (called from main.go).
func (m *Module) SetUploads(uploads *upload.Module) {
	m.uploads = uploads
}

// WatchHealth adds a module to the /health report.
func (m *Module) WatchHealth(name string, module mono.HealthCheckableModule) {
	m.health[name] = module
}

// Start initializes and starts the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.relay == nil {
		return fmt.Errorf("relay controller dependency not set")
	}
	if m.uploads == nil {
		return fmt.Errorf("upload module dependency not set")
	}
	if m.activity == nil {
		return fmt.Errorf("activity dependency not set")
	}
	if m.counter == nil {
		return fmt.Errorf("history dependency not set")
	}

	m.baseCtx, m.cancel = context.WithCancel(context.Background())

	m.app = fiber.New(fiber.Config{
		AppName:               "roomrelay",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		BodyLimit:             upload.MaxImageSize + 1024*1024,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderUpgrade) == "websocket"
		},
	}))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	m.setupRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.cfg.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", m.cfg.Addr)
	return nil
}

// Stop closes every websocket and shuts down the HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.cancel()

	closed := 0
	m.conns.Range(func(_, value any) bool {
		value.(*relay.Outbox).Close()
		closed++
		return true
	})
	m.logger.Info("Shutting down HTTP server", "websockets", closed)

	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr":        m.cfg.Addr,
			"connections": m.connectionCount(),
		},
	}
}

func (m *Module) connectionCount() int {
	count := 0
	m.conns.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
