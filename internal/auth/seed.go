package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// CredentialWriter is a CredentialStore that can also save credentials.
type CredentialWriter interface {
	CredentialStore
	SaveCredential(ctx context.Context, c models.Credential) error
}

// SeedAdmin creates an administrator profile and its credential. An
// existing credential for email is left untouched and its uid returned.
func SeedAdmin(ctx context.Context, creds CredentialWriter, users backend.Collection[models.User], email, password, name string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", fmt.Errorf("seed admin: %w", backend.ErrInvalidCredential)
	}

	existing, err := creds.FindByEmail(ctx, email)
	switch {
	case err == nil:
		slog.Info("admin already exists, skipping", "email", email, "uid", existing.UID)
		return existing.UID, nil
	case !errors.Is(err, backend.ErrUserNotFound):
		return "", fmt.Errorf("seed admin: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	uid, err := users.Create(ctx, models.User{
		Name:    name,
		Email:   email,
		Plan:    models.PlanNone,
		IsAdmin: true,
	})
	if err != nil {
		return "", fmt.Errorf("create admin profile: %w", err)
	}

	if err := creds.SaveCredential(ctx, models.Credential{UID: uid, Email: email, PasswordHash: hash}); err != nil {
		return "", fmt.Errorf("save admin credential: %w", err)
	}

	slog.Info("admin created", "email", email, "uid", uid)
	return uid, nil
}
