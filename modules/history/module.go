package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds history module configuration.
type Config struct {
	DBPath        string
	Debug         bool
	RedisAddr     string
	CachePrefix   string
	CacheTTL      time.Duration
	Retention     time.Duration
	PurgeInterval time.Duration
}

// DefaultConfig returns the default history configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:        "roomrelay.db",
		CachePrefix:   "roomrelay:history:",
		CacheTTL:      time.Minute,
		Retention:     DefaultRetention,
		PurgeInterval: time.Hour,
	}
}

// Module persists room messages with GORM + SQLite and serves them via request-reply.
type Module struct {
	cfg     Config
	db      *gorm.DB
	cache   *Cache
	service *Service
	logger  types.Logger

	cancelPurge context.CancelFunc
	wg          sync.WaitGroup
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new history module.
func NewModule(cfg Config, logger types.Logger) *Module {
	defaults := DefaultConfig()
	if cfg.DBPath == "" {
		cfg.DBPath = defaults.DBPath
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = defaults.CachePrefix
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = defaults.PurgeInterval
	}
	return &Module{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "history"
}

// Service returns the history service. It is nil before Start.
func (m *Module) Service() *Service {
	return m.service
}

// Health performs a health check on the history module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"driver":    "sqlite",
		"path":      m.cfg.DBPath,
		"retention": m.cfg.Retention.String(),
	}
	if m.cache != nil {
		details["cache"] = m.cache.Stats()
		if err := m.cache.Ping(ctx); err != nil {
			// History still works without the cache.
			details["cache_error"] = err.Error()
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterServices registers request-reply services in the service container.
// They are reachable as "services.history.<name>".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceAppend, json.Unmarshal, json.Marshal, m.handleAppend,
	); err != nil {
		return fmt.Errorf("failed to register append service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRecent, json.Unmarshal, json.Marshal, m.handleRecent,
	); err != nil {
		return fmt.Errorf("failed to register recent service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDelete, json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register delete service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCount, json.Unmarshal, json.Marshal, m.handleCount,
	); err != nil {
		return fmt.Errorf("failed to register count service: %w", err)
	}

	m.logger.Info("Registered services", "services", "history.{append,recent,delete,count}")
	return nil
}

// Start opens the database, runs migrations, connects the optional cache and
// launches the retention purge loop.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.cfg.DBPath)

	logLevel := logger.Silent
	if m.cfg.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.cfg.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&Message{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if m.cfg.RedisAddr != "" {
		m.cache = NewCache(redis.NewClient(&redis.Options{Addr: m.cfg.RedisAddr}), m.cfg.CachePrefix, m.cfg.CacheTTL)
		m.logger.Info("History cache enabled", "addr", m.cfg.RedisAddr)
	}

	m.service = NewService(NewRepository(m.db), m.cache, m.cfg.Retention, m.logger)

	purgeCtx, cancel := context.WithCancel(context.Background())
	m.cancelPurge = cancel
	m.wg.Add(1)
	go m.purgeLoop(purgeCtx)

	m.logger.Info("History module started", "retention", m.cfg.Retention.String())
	return nil
}

// Stop stops the purge loop and closes the database and cache connections.
func (m *Module) Stop(_ context.Context) error {
	if m.cancelPurge != nil {
		m.cancelPurge()
		m.wg.Wait()
	}
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			m.logger.Warn("Failed to close history cache", "error", err)
		}
	}
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("History module stopped")
	return nil
}

func (m *Module) purgeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PurgeInterval)
	defer ticker.Stop()

	m.purge(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.purge(ctx)
		}
	}
}

func (m *Module) purge(ctx context.Context) {
	removed, err := m.service.PurgeExpired(ctx)
	if err != nil {
		m.logger.Error("Retention purge failed", "error", err)
		return
	}
	if removed > 0 {
		m.logger.Info("Purged expired messages", "count", removed)
	}
}

// handleAppend runs on the event bus context, so the caller's deadline is
// reapplied here to abort the insert together with the request.
func (m *Module) handleAppend(ctx context.Context, req AppendRequest, _ *mono.Msg) (AppendResponse, error) {
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	msg, err := m.service.Append(ctx, req.ID, req.Room, req.Name, req.Text, req.Kind)
	if err != nil {
		return AppendResponse{}, err
	}
	return AppendResponse{Message: msg}, nil
}

func (m *Module) handleRecent(ctx context.Context, req RecentRequest, _ *mono.Msg) (RecentResponse, error) {
	msgs, err := m.service.Recent(ctx, req.Room, req.Limit)
	if err != nil {
		return RecentResponse{}, err
	}
	return RecentResponse{Messages: msgs}, nil
}

func (m *Module) handleDelete(ctx context.Context, req DeleteRequest, _ *mono.Msg) (DeleteResponse, error) {
	deleted, err := m.service.Delete(ctx, req.Room, req.ID)
	if err != nil {
		return DeleteResponse{}, err
	}
	if deleted {
		m.logger.Info("Withdrew undelivered message", "room", req.Room, "id", req.ID)
	}
	return DeleteResponse{Deleted: deleted}, nil
}

func (m *Module) handleCount(ctx context.Context, req CountRequest, _ *mono.Msg) (CountResponse, error) {
	total, err := m.service.Count(ctx, req.Room)
	if err != nil {
		return CountResponse{}, err
	}
	return CountResponse{Total: total}, nil
}
