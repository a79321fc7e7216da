package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// CredentialRepository handles database operations for login credentials.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// FindByEmail returns the credential for email, or backend.ErrUserNotFound.
func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var c models.Credential
	err := r.db.QueryRowContext(ctx, `
		SELECT uid, email, password_hash, disabled, created_at
		FROM credentials WHERE email = $1
	`, strings.ToLower(email)).Scan(&c.UID, &c.Email, &c.PasswordHash, &c.Disabled, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", email, backend.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &c, nil
}

// SaveCredential inserts or updates a credential.
func (r *CredentialRepository) SaveCredential(ctx context.Context, c models.Credential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (email, uid, password_hash, disabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			uid = EXCLUDED.uid,
			password_hash = EXCLUDED.password_hash,
			disabled = EXCLUDED.disabled
	`, strings.ToLower(c.Email), c.UID, c.PasswordHash, c.Disabled)
	if err != nil {
		return fmt.Errorf("save credential: %w", mapError(err))
	}
	return nil
}
