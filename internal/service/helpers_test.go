package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/backend/memory"
	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

var historyIndex = backend.Index{
	Collection: backend.CollectionTickets,
	Field:      "purchaser_id",
	OrderBy:    "created_at",
}

var t0 = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func waitReady(t *testing.T, v service.Readier) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := service.WaitReady(ctx, v); err != nil {
		t.Fatalf("view not ready: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// signal returns a callback that never blocks and a channel fed by it.
func signal() (func(), <-chan struct{}) {
	ch := make(chan struct{}, 64)
	return func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}, ch
}

// countingUsers records Get calls and holds them until release is closed.
type countingUsers struct {
	backend.Collection[models.User]

	mu      sync.Mutex
	calls   map[string]int
	release chan struct{}
}

func (c *countingUsers) Get(ctx context.Context, id string) (models.User, error) {
	c.mu.Lock()
	c.calls[id]++
	c.mu.Unlock()
	select {
	case <-c.release:
	case <-ctx.Done():
		return models.User{}, ctx.Err()
	}
	return c.Collection.Get(ctx, id)
}

func (c *countingUsers) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

// storeWithUsers swaps the users collection of a store.
type storeWithUsers struct {
	backend.Store
	users backend.Collection[models.User]
}

func (s storeWithUsers) Users() backend.Collection[models.User] { return s.users }

func newStore() *memory.Store {
	return memory.New(historyIndex)
}

// brokenMovies is a movies collection whose subscriptions fail at once.
type brokenMovies struct {
	backend.Collection[models.Movie]
	err error
}

func (b brokenMovies) Subscribe(q backend.Query, onSnapshot func([]models.Movie), onError func(error)) backend.Unsubscribe {
	done := make(chan struct{})
	go func() {
		defer close(done)
		onError(b.err)
	}()
	return func() { <-done }
}

// storeWithMovies swaps the movies collection of a store.
type storeWithMovies struct {
	backend.Store
	movies backend.Collection[models.Movie]
}

func (s storeWithMovies) Movies() backend.Collection[models.Movie] { return s.movies }
