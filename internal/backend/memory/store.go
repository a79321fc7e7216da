// Package memory implements the backend collaborators in process. It backs
// BACKEND=memory for local development and serves as the fake in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// Store is an in-memory backend.Store.
type Store struct {
	hub     *backend.Hub
	tickets *Collection[models.Ticket]
	movies  *Collection[models.Movie]
	users   *Collection[models.User]
}

// New creates an empty Store. Filtered and ordered subscriptions succeed
// only for the given indexes.
func New(indexes ...backend.Index) *Store {
	hub := backend.NewHub()
	return &Store{
		hub:     hub,
		tickets: newCollection[models.Ticket](backend.CollectionTickets, hub, indexes),
		movies:  newCollection[models.Movie](backend.CollectionMovies, hub, indexes),
		users:   newCollection[models.User](backend.CollectionUsers, hub, indexes),
	}
}

func (s *Store) Tickets() backend.Collection[models.Ticket] { return s.tickets }
func (s *Store) Movies() backend.Collection[models.Movie]   { return s.movies }
func (s *Store) Users() backend.Collection[models.User]     { return s.users }

// TicketsCollection exposes the concrete collection for test setup.
func (s *Store) TicketsCollection() *Collection[models.Ticket] { return s.tickets }

// MoviesCollection exposes the concrete collection for test setup.
func (s *Store) MoviesCollection() *Collection[models.Movie] { return s.movies }

// UsersCollection exposes the concrete collection for test setup.
func (s *Store) UsersCollection() *Collection[models.User] { return s.users }

// Hub returns the notification hub shared by all collections.
func (s *Store) Hub() *backend.Hub { return s.hub }

// Collection holds records of one kind keyed by id.
type Collection[T backend.Record] struct {
	name    string
	hub     *backend.Hub
	indexes []backend.Index

	mu       sync.RWMutex
	records  map[string]T
	writeErr error
}

func newCollection[T backend.Record](name string, hub *backend.Hub, indexes []backend.Index) *Collection[T] {
	return &Collection[T]{
		name:    name,
		hub:     hub,
		indexes: indexes,
		records: make(map[string]T),
	}
}

// FailWrites makes every following write return err. A nil err restores
// normal behavior.
func (c *Collection[T]) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Put stores v under id as is, bypassing id and timestamp assignment.
func (c *Collection[T]) Put(id string, v T) {
	c.mu.Lock()
	c.records[id] = v
	c.mu.Unlock()
	c.hub.Notify(c.name)
}

// Len returns the number of stored records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *Collection[T]) Subscribe(q backend.Query, onSnapshot func([]T), onError func(error)) backend.Unsubscribe {
	return backend.Watch(c.hub, c.name, func(ctx context.Context) ([]T, error) {
		return c.query(q)
	}, onSnapshot, onError)
}

func (c *Collection[T]) query(q backend.Query) ([]T, error) {
	if q.NeedsIndex() && !c.indexed(q) {
		return nil, fmt.Errorf("%s where %s: %w", c.name, q, backend.ErrIndexMissing)
	}

	c.mu.RLock()
	out := make([]T, 0, len(c.records))
	for _, r := range c.records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	c.mu.RUnlock()

	if q.OrderBy == "" {
		return out, nil
	}
	backend.SortRecords(out, q)
	return out, nil
}

func (c *Collection[T]) indexed(q backend.Query) bool {
	for _, ix := range c.indexes {
		if ix.Serves(c.name, q) {
			return true
		}
	}
	return false
}

func (c *Collection[T]) Create(ctx context.Context, v T) (string, error) {
	id := uuid.NewString()
	created, err := patch(v, backend.Fields{"id": id, "created_at": time.Now().UTC()})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.writeErr != nil {
		c.mu.Unlock()
		return "", c.writeErr
	}
	c.records[id] = created
	c.mu.Unlock()

	c.hub.Notify(c.name)
	return id, nil
}

func (c *Collection[T]) Update(ctx context.Context, id string, fields backend.Fields) error {
	return c.update(id, backend.Query{}, fields)
}

func (c *Collection[T]) UpdateIf(ctx context.Context, id string, match backend.Query, fields backend.Fields) error {
	return c.update(id, match, fields)
}

func (c *Collection[T]) update(id string, match backend.Query, fields backend.Fields) error {
	for name := range fields {
		if name == "id" || name == "created_at" {
			return fmt.Errorf("%s.%s: %w", c.name, name, backend.ErrInvalidField)
		}
	}

	c.mu.Lock()
	if c.writeErr != nil {
		c.mu.Unlock()
		return c.writeErr
	}
	current, ok := c.records[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", c.name, id, backend.ErrNotFound)
	}
	if !match.Matches(current) {
		c.mu.Unlock()
		return fmt.Errorf("%s/%s where %s: %w", c.name, id, match, backend.ErrPreconditionFailed)
	}
	updated, err := patch(current, fields)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.records[id] = updated
	c.mu.Unlock()

	c.hub.Notify(c.name)
	return nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.writeErr != nil {
		c.mu.Unlock()
		return c.writeErr
	}
	delete(c.records, id)
	c.mu.Unlock()

	c.hub.Notify(c.name)
	return nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s/%s: %w", c.name, id, backend.ErrNotFound)
	}
	return r, nil
}

// patch applies fields to v through its JSON representation so that field
// names match the json tags used everywhere else.
func patch[T any](v T, fields backend.Fields) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, err
	}
	for name, value := range fields {
		if _, known := doc[name]; !known {
			return out, fmt.Errorf("%s: %w", name, backend.ErrInvalidField)
		}
		enc, err := json.Marshal(value)
		if err != nil {
			return out, fmt.Errorf("%s: %w", name, err)
		}
		doc[name] = enc
	}
	raw, err = json.Marshal(doc)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
