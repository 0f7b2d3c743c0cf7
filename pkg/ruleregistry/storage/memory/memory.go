package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

// Backend is an in-memory implementation of the ruleregistry.BlobStore interface
type Backend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// New creates a new in-memory storage backend
func New() ruleregistry.BlobStore {
	return &Backend{
		blobs: make(map[string][]byte),
	}
}

// Upload writes content at the given key
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[key] = data
	return nil
}

// Download reads content at the given key
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, ruleregistry.ErrBlobNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes content at the given key
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[key]; !exists {
		return ruleregistry.ErrBlobNotFound
	}

	delete(b.blobs, key)
	return nil
}

// GetBlobMeta retrieves metadata for a blob in memory
func (b *Backend) GetBlobMeta(ctx context.Context, key string) (*ruleregistry.BlobMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, ruleregistry.ErrBlobNotFound
	}

	return &ruleregistry.BlobMeta{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: "text/markdown",
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// GetDownloadURL returns a URL for downloading content
// In-memory implementation doesn't use URLs
func (b *Backend) GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error) {
	return "", errors.New("direct download required for memory backend")
}
