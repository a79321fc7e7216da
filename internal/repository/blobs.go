package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cinepasse-backoffice/internal/backend"
)

// BlobRepository is a backend.BlobStorage keeping objects in PostgreSQL.
type BlobRepository struct {
	db      *sql.DB
	baseURL string
}

// NewBlobRepository creates a BlobRepository whose public URLs start with
// baseURL.
func NewBlobRepository(db *sql.DB, baseURL string) *BlobRepository {
	return &BlobRepository{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload stores data under name. Names are never overwritten.
func (r *BlobRepository) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO blobs (name, content_type, data) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, name, contentType, data)
	if err != nil {
		return "", fmt.Errorf("store blob %q: %w", name, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("blob %q already exists", name)
	}
	return r.baseURL + "/blobs/" + (&url.URL{Path: name}).EscapedPath(), nil
}

// Open returns the object stored under name.
func (r *BlobRepository) Open(ctx context.Context, name string) (*backend.Blob, error) {
	b := backend.Blob{Name: name}
	err := r.db.QueryRowContext(ctx, `
		SELECT content_type, data FROM blobs WHERE name = $1
	`, name).Scan(&b.ContentType, &b.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blob %q: %w", name, backend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %q: %w", name, err)
	}
	return &b, nil
}
