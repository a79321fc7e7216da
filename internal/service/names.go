package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// NameResolver resolves purchaser ids to display names for one view.
// A lookup is registered as in flight before it starts, so overlapping
// requests for the same id share one backend call.
type NameResolver struct {
	users      backend.Collection[models.User]
	onResolved func()

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	names    map[string]string
	inflight map[string]chan struct{}
	wg       sync.WaitGroup
}

// NewNameResolver creates a resolver. onResolved runs after every name
// that becomes known.
func NewNameResolver(users backend.Collection[models.User], onResolved func()) *NameResolver {
	ctx, cancel := context.WithCancel(context.Background())
	return &NameResolver{
		users:      users,
		onResolved: onResolved,
		ctx:        ctx,
		cancel:     cancel,
		names:      make(map[string]string),
		inflight:   make(map[string]chan struct{}),
	}
}

// Request starts a lookup for every id that is neither known nor in flight.
func (r *NameResolver) Request(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := r.names[id]; ok {
			continue
		}
		if _, ok := r.inflight[id]; ok {
			continue
		}
		done := make(chan struct{})
		r.inflight[id] = done
		r.wg.Add(1)
		go r.lookup(id, done)
	}
}

func (r *NameResolver) lookup(id string, done chan struct{}) {
	defer r.wg.Done()

	user, err := r.users.Get(r.ctx, id)

	r.mu.Lock()
	delete(r.inflight, id)
	found := err == nil
	if found {
		r.names[id] = user.Name
	}
	r.mu.Unlock()
	close(done)

	switch {
	case found:
		notify(r.onResolved)
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, context.Canceled):
		// absent users keep the placeholder and are retried on a later snapshot
	default:
		slog.Warn("purchaser lookup failed", "purchaser_id", id, "error", err)
	}
}

// Name returns the resolved name for id.
func (r *NameResolver) Name(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.names[id]
	return name, ok
}

// Wait blocks until every lookup in flight at call time has finished.
func (r *NameResolver) Wait(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]chan struct{}, 0, len(r.inflight))
	for _, ch := range r.inflight {
		pending = append(pending, ch)
	}
	r.mu.Unlock()

	for _, ch := range pending {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close cancels outstanding lookups and waits for them to return. The
// cache is discarded with the resolver.
func (r *NameResolver) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}
