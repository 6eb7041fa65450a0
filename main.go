package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/example/roomrelay/modules/activity"
	"github.com/example/roomrelay/modules/api"
	"github.com/example/roomrelay/modules/history"
	"github.com/example/roomrelay/modules/relay"
	"github.com/example/roomrelay/modules/upload"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	apiCfg := api.Config{
		Addr:          getEnv("HTTP_ADDR", ":10000"),
		AllowOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		SendBuffer:    getEnvInt("WS_SEND_BUFFER", 64),
		RatePerSecond: getEnvFloat("WS_RATE_PER_SEC", 10),
		RateBurst:     getEnvInt("WS_RATE_BURST", 20),
	}
	relayCfg := relay.Config{
		AdminName:      getEnv("ADMIN_NAME", "Admin"),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 50),
		PersistTimeout: getEnvDuration("PERSIST_TIMEOUT", 5*time.Second),
	}
	historyCfg := history.Config{
		DBPath:    getEnv("DB_PATH", "roomrelay.db"),
		Debug:     getEnv("DB_DEBUG", "") == "true",
		RedisAddr: getEnv("REDIS_ADDR", ""),
		Retention: getEnvDuration("RETENTION", history.DefaultRetention),
	}
	jetstreamDir := getEnv("JETSTREAM_DIR", "/tmp/roomrelay-jetstream")

	log.Println("=== RoomRelay ===")
	log.Printf("HTTP Addr: %s", apiCfg.Addr)
	log.Printf("Database: %s", historyCfg.DBPath)
	log.Printf("JetStream Dir: %s", jetstreamDir)

	// Create mono application with embedded NATS JetStream
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(jetstreamDir),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        upload.BucketName,
				Description: "Images shared in chat rooms",
				MaxBytes:    1024 * 1024 * 1024, // 1GB max storage
				Storage:     fsjetstream.FileStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}

	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	// Create modules
	historyModule := history.NewModule(historyCfg, app.Logger())
	relayModule := relay.NewModule(relayCfg, app.Logger())
	activityModule := activity.NewModule(app.Logger())
	uploadModule := upload.NewModule(app.Logger())
	apiModule := api.NewModule(apiCfg, app.Logger())

	// Wire up dependencies that do not travel over the service container
	apiModule.SetRelay(relayModule.Controller())
	apiModule.SetUploads(uploadModule)
	apiModule.WatchHealth(historyModule.Name(), historyModule)
	apiModule.WatchHealth(relayModule.Name(), relayModule)
	apiModule.WatchHealth(activityModule.Name(), activityModule)
	apiModule.WatchHealth(apiModule.Name(), apiModule)

	// Register modules (dependencies are resolved by the framework)
	app.Register(historyModule)
	app.Register(relayModule)
	app.Register(activityModule)
	app.Register(uploadModule)
	app.Register(apiModule)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	printStartupInfo(apiCfg.Addr)

	// Setup graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(addr string) {
	log.Println("=== Application Started ===")
	log.Printf("Listening on %s", addr)
	log.Println("Endpoints:")
	log.Println("  GET  /health                         - Health check")
	log.Println("  GET  /ws                             - WebSocket (chat + call signaling)")
	log.Println("  POST /upload                         - Upload an image (field: image)")
	log.Println("  GET  /uploads/:name                  - Fetch an uploaded image")
	log.Println("  GET  /api/v1/rooms/:room/members     - Current room members")
	log.Println("  GET  /api/v1/rooms/:room/history     - Recent room messages")
	log.Println("  GET  /api/v1/stats                   - Connection and activity stats")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
