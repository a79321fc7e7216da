package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// Credentials is an in-memory credential table for the auth service.
type Credentials struct {
	mu    sync.RWMutex
	byKey map[string]models.Credential
}

// NewCredentials creates an empty credential table.
func NewCredentials() *Credentials {
	return &Credentials{byKey: make(map[string]models.Credential)}
}

// FindByEmail returns backend.ErrUserNotFound for unknown emails.
func (c *Credentials) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cred, ok := c.byKey[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", email, backend.ErrUserNotFound)
	}
	return &cred, nil
}

// SaveCredential inserts or replaces the credential for its email.
func (c *Credentials) SaveCredential(ctx context.Context, cred models.Credential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[strings.ToLower(cred.Email)] = cred
	return nil
}
