// Package auth implements backend.Auth with bcrypt-checked credentials and
// signed session tokens. Sign-outs are recorded in Redis and broadcast over
// Redis Pub/Sub so that every instance ends the session's subscriptions.
// Without Redis, revocations are kept in process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/config"
	"cinepasse-backoffice/internal/models"
)

// CredentialStore looks up login credentials.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Service is the authentication collaborator.
type Service struct {
	creds         CredentialStore
	key           []byte
	ttl           time.Duration
	rdb           *redis.Client
	revokedPrefix string
	channel       string
	now           func() time.Time

	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	revoked  map[string]time.Time
}

// NewService creates the auth service. rdb may be nil.
func NewService(creds CredentialStore, cfg config.AuthConfig, rdb *redis.Client) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		creds:         creds,
		key:           []byte(cfg.SigningKey),
		ttl:           ttl,
		rdb:           rdb,
		revokedPrefix: cfg.RevokedKeyPrefix,
		channel:       cfg.SignOutChannel,
		now:           time.Now,
		watchers:      make(map[string]map[*watcher]struct{}),
		revoked:       make(map[string]time.Time),
	}
}

// HashPassword returns the bcrypt hash stored in credentials.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// SignIn checks the credential and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	if email == "" || password == "" {
		return nil, backend.ErrInvalidCredential
	}

	cred, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if cred.Disabled {
		return nil, fmt.Errorf("%s disabled: %w", email, backend.ErrInvalidCredential)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, backend.ErrWrongPassword
	}

	now := s.now().UTC().Truncate(time.Second)
	c := claims{
		Email: cred.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   cred.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	slog.Info("admin signed in", "uid", cred.UID)
	return &backend.Session{Token: token, Principal: principalFrom(c)}, nil
}

// Verify returns the principal behind a valid, unrevoked token.
func (s *Service) Verify(ctx context.Context, token string) (*models.Principal, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.isRevoked(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, backend.ErrSessionEnded
	}
	p := principalFrom(*c)
	return &p, nil
}

// SignOut revokes the session behind token. Invalid tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return nil
	}

	remaining := time.Until(c.ExpiresAt.Time)
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, s.revokedPrefix+c.ID, "1", remaining).Err(); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
		if err := s.rdb.Publish(ctx, s.channel, c.ID).Err(); err != nil {
			slog.Error("failed to broadcast sign-out", "error", err)
		}
	} else {
		s.mu.Lock()
		s.revoked[c.ID] = c.ExpiresAt.Time
		s.mu.Unlock()
	}

	s.end(c.ID)
	slog.Info("admin signed out", "uid", c.Subject)
	return nil
}

// Run relays sign-outs performed by other instances to local subscribers
// until ctx is done. It returns immediately without Redis.
func (s *Service) Run(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.end(msg.Payload)
		}
	}
}

func (s *Service) parse(token string) (*claims, error) {
	if token == "" {
		return nil, backend.ErrInvalidCredential
	}
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, backend.ErrSessionEnded
		}
		return nil, fmt.Errorf("%w: %v", backend.ErrInvalidCredential, err)
	}
	return c, nil
}

func (s *Service) isRevoked(ctx context.Context, id string) (bool, error) {
	if s.rdb != nil {
		n, err := s.rdb.Exists(ctx, s.revokedPrefix+id).Result()
		if err != nil {
			return false, fmt.Errorf("check revocation: %w", err)
		}
		return n > 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	_, ok := s.revoked[id]
	return ok, nil
}

func principalFrom(c claims) models.Principal {
	p := models.Principal{UID: c.Subject, Email: c.Email}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
