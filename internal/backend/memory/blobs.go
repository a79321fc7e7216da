package memory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"cinepasse-backoffice/internal/backend"
)

// Blobs is an in-memory backend.BlobStorage.
type Blobs struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]backend.Blob
	err     error
}

// NewBlobs creates a blob store whose public URLs start with baseURL.
func NewBlobs(baseURL string) *Blobs {
	return &Blobs{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]backend.Blob),
	}
}

// FailUploads makes every following upload return err.
func (b *Blobs) FailUploads(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *Blobs) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	if _, exists := b.objects[name]; exists {
		return "", fmt.Errorf("blob %q already exists", name)
	}
	b.objects[name] = backend.Blob{
		Name:        name,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	}
	return b.baseURL + "/blobs/" + (&url.URL{Path: name}).EscapedPath(), nil
}

func (b *Blobs) Open(ctx context.Context, name string) (*backend.Blob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.objects[name]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", name, backend.ErrNotFound)
	}
	return &blob, nil
}
