package upload

import (
	"context"
	"fmt"
	"time"

	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
)

// BucketStore keeps images in an fs-jetstream bucket.
type BucketStore struct {
	bucket fsjetstream.FileStoragePort
}

// NewBucketStore creates a store over bucket.
func NewBucketStore(bucket fsjetstream.FileStoragePort) *BucketStore {
	return &BucketStore{bucket: bucket}
}

// Save stores data under name with its content type in the object headers.
func (b *BucketStore) Save(ctx context.Context, name, contentType string, data []byte) error {
	_, err := b.bucket.Put(ctx, name, data,
		fsjetstream.WithDescription(fmt.Sprintf("Image: %s", name)),
		fsjetstream.WithHeaders(map[string]string{
			"Content-Type": contentType,
			"Uploaded-At":  time.Now().Format(time.RFC3339),
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// Load returns the object stored under name and its content type.
func (b *BucketStore) Load(_ context.Context, name string) ([]byte, string, error) {
	objects, err := b.bucket.List(fsjetstream.WithPrefix(name))
	if err != nil {
		return nil, "", fmt.Errorf("failed to list objects: %w", err)
	}

	var info *fsjetstream.ObjectInfo
	for i := range objects {
		if objects[i].Name == name {
			info = &objects[i]
			break
		}
	}
	if info == nil {
		return nil, "", ErrNotFound
	}

	data, err := b.bucket.Get(name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object: %w", err)
	}
	return data, info.Headers["Content-Type"], nil
}
