package upload

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	"github.com/go-monolith/mono/pkg/types"
)

// BucketName is the fs-jetstream bucket holding uploaded images.
const BucketName = "images"

// Module stores shared images using the fs-jetstream plugin.
type Module struct {
	storage *fsjetstream.PluginModule
	service *Service
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module          = (*Module)(nil)
	_ mono.UsePluginModule = (*Module)(nil)
)

// NewModule creates a new upload module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "upload"
}

// SetPlugin receives the storage plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	storage, ok := plugin.(*fsjetstream.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for storage",
			"alias", alias,
			"expected", "*fsjetstream.PluginModule")
		return
	}
	m.storage = storage
}

// Start opens the images bucket and creates the service.
func (m *Module) Start(_ context.Context) error {
	if m.storage == nil {
		return fmt.Errorf("required plugin 'storage' not registered")
	}

	bucket := m.storage.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in storage plugin", BucketName)
	}

	service, err := NewService(NewBucketStore(bucket))
	if err != nil {
		return err
	}
	m.service = service

	m.logger.Info("Upload module started", "bucket", BucketName, "max_bytes", MaxImageSize)
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Upload module stopped")
	return nil
}

// Service returns the upload service. It is nil before Start.
func (m *Module) Service() *Service {
	return m.service
}
