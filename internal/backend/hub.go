package backend

import (
	"context"
	"sync"
)

// Hub fans change notifications out to live subscriptions. Each
// subscription runs its own delivery goroutine, so snapshots of one
// subscription are serialized while different subscriptions progress
// independently.
type Hub struct {
	mu    sync.Mutex
	feeds map[string]map[*feed]struct{}
}

type feed struct {
	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{feeds: make(map[string]map[*feed]struct{})}
}

// Notify marks every subscription on collection as stale. Pending
// notifications coalesce: a subscription that is still loading reloads
// once more, not once per change.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for f := range h.feeds[collection] {
		f.poke()
	}
}

// NotifyAll marks every subscription as stale.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.feeds {
		for f := range set {
			f.poke()
		}
	}
}

// Len returns the number of live subscriptions on collection.
func (h *Hub) Len(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.feeds[collection])
}

func (f *feed) poke() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

func (h *Hub) add(collection string, f *feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.feeds[collection]
	if !ok {
		set = make(map[*feed]struct{})
		h.feeds[collection] = set
	}
	set[f] = struct{}{}
}

func (h *Hub) remove(collection string, f *feed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.feeds[collection], f)
	if len(h.feeds[collection]) == 0 {
		delete(h.feeds, collection)
	}
}

// Watch starts a subscription on collection. fetch runs once immediately
// and again after every Notify; its result is handed to onSnapshot. The
// first fetch error goes to onError and ends the subscription.
func Watch[T any](h *Hub, collection string, fetch func(ctx context.Context) ([]T, error), onSnapshot func([]T), onError func(error)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	f := &feed{
		kick:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.add(collection, f)

	go func() {
		defer close(f.done)
		defer h.remove(collection, f)
		for {
			records, err := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(records)

			select {
			case <-ctx.Done():
				return
			case <-f.kick:
			}
		}
	}()

	return func() {
		f.once.Do(func() {
			f.cancel()
			<-f.done
		})
	}
}
