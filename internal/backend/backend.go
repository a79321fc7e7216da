// Package backend defines the collaborators the backoffice delegates to:
// an authentication service, a record store with live queries and a blob
// storage service. Implementations live in internal/repository, internal/auth
// (Postgres and Redis) and internal/backend/memory (in-process).
package backend

import (
	"context"
	"errors"

	"cinepasse-backoffice/internal/models"
)

// Record store errors.
var (
	ErrNotFound         = errors.New("record not found")
	ErrIndexMissing     = errors.New("query requires a composite index")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidField     = errors.New("invalid field")
	// ErrPreconditionFailed is returned by UpdateIf when the stored record
	// no longer matches the expected values.
	ErrPreconditionFailed = errors.New("record changed since it was read")
)

// Auth errors.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUserNotFound      = errors.New("user not found")
	ErrWrongPassword     = errors.New("wrong password")
	ErrTooManyRequests   = errors.New("too many requests")
	ErrSessionEnded      = errors.New("session ended")
)

// Collection names.
const (
	CollectionTickets = "tickets"
	CollectionMovies  = "movies"
	CollectionUsers   = "users"
)

// Record is implemented by every stored entity.
type Record interface {
	Field(name string) any
}

// Fields is a partial update keyed by field name.
type Fields map[string]any

// Unsubscribe releases a live subscription. It is idempotent and returns
// once no further callback can fire. It must not be called from inside the
// subscription's own callbacks.
type Unsubscribe func()

// Collection is one logical collection of records.
type Collection[T Record] interface {
	// Subscribe delivers a full snapshot of q on subscribe and after every
	// change to the collection. A failed query is reported once through
	// onError and ends the subscription.
	Subscribe(q Query, onSnapshot func([]T), onError func(error)) Unsubscribe
	Create(ctx context.Context, v T) (string, error)
	Update(ctx context.Context, id string, fields Fields) error
	// UpdateIf applies fields only while the record satisfies every filter
	// of match, atomically with the check. A record that exists but does
	// not match yields ErrPreconditionFailed.
	UpdateIf(ctx context.Context, id string, match Query, fields Fields) error
	Delete(ctx context.Context, id string) error
	// Get returns ErrNotFound when the record is absent.
	Get(ctx context.Context, id string) (T, error)
}

// Store groups the three collections the backoffice works with.
type Store interface {
	Tickets() Collection[models.Ticket]
	Movies() Collection[models.Movie]
	Users() Collection[models.User]
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string           `json:"-"`
	Principal models.Principal `json:"principal"`
}

// Auth authenticates administrators.
type Auth interface {
	// Subscribe calls onChange with the principal behind token (nil when the
	// token is not valid) and again with nil when the session ends.
	Subscribe(token string, onChange func(*models.Principal)) Unsubscribe
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// Blob is a stored object.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// BlobStorage stores uploaded images and serves them back.
type BlobStorage interface {
	// Upload stores data under name and returns its public URL.
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
	// Open returns ErrNotFound when no object exists under name.
	Open(ctx context.Context, name string) (*Blob, error)
}
