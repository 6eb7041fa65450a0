package upload

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 * 1024 * 1024

const (
	maxNameLength      = 100
	maxObjectNameLen   = 200
	defaultContentType = "application/octet-stream"
)

// ObjectStore stores uploaded images by object name.
type ObjectStore interface {
	Save(ctx context.Context, name, contentType string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, string, error)
}

// UploadResult describes a stored image.
type UploadResult struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	DurationMs  int64  `json:"duration_ms"`
}

// Service validates and stores image uploads.
type Service struct {
	store ObjectStore
	newID func() string
	now   func() time.Time
}

// NewService creates an upload service over store.
func NewService(store ObjectStore) (*Service, error) {
	gen, err := nanoid.Standard(12)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &Service{
		store: store,
		newID: gen,
		now:   time.Now,
	}, nil
}

// ValidateImage checks a declared content type and size before the body is read.
func ValidateImage(contentType string, size int64) error {
	if size > MaxImageSize {
		return fmt.Errorf("%w: %w", ErrUploadRejected, ErrTooLarge)
	}
	if !isImage(contentType) {
		return fmt.Errorf("%w: %w", ErrUploadRejected, ErrNotImage)
	}
	return nil
}

// Upload validates data as an image and stores it under a unique object name.
// The declared content type must be an image and so must the sniffed one.
func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (*UploadResult, error) {
	start := s.now()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrUploadRejected, ErrEmpty)
	}
	if err := ValidateImage(contentType, int64(len(data))); err != nil {
		return nil, err
	}
	sniffed := http.DetectContentType(data)
	if !isImage(sniffed) {
		return nil, fmt.Errorf("%w: %w", ErrUploadRejected, ErrNotImage)
	}

	name := fmt.Sprintf("%d_%s_%s", start.UnixMilli(), s.newID(), sanitizeFilename(filename))
	if err := s.store.Save(ctx, name, sniffed, data); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	return &UploadResult{
		Name:        name,
		ContentType: sniffed,
		Size:        int64(len(data)),
		Path:        "/uploads/" + name,
		DurationMs:  s.now().Sub(start).Milliseconds(),
	}, nil
}

// Open returns a stored image and its content type.
func (s *Service) Open(ctx context.Context, name string) ([]byte, string, error) {
	if !validObjectName(name) {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	data, contentType, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	return data, contentType, nil
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

// sanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func sanitizeFilename(filename string) string {
	clean := filepath.Base(filepath.Clean(strings.ReplaceAll(filename, "\\", "/")))
	if clean == "." || clean == ".." || clean == "/" || clean == "" {
		return "unnamed"
	}

	var b strings.Builder
	for _, r := range clean {
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxNameLength {
			break
		}
	}
	return b.String()
}

func validObjectName(name string) bool {
	if name == "" || len(name) > maxObjectNameLen || name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
