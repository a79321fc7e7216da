package service

import (
	"log/slog"
	"sync"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

// Stats are the dashboard counters.
type Stats struct {
	Tickets int `json:"tickets"`
	Pending int `json:"pending"`
	Movies  int `json:"movies"`
	Users   int `json:"users"`
}

// Dashboard counts tickets, movies and users. Each counter follows its own
// subscription, so counters may briefly disagree with each other.
type Dashboard struct {
	store backend.Store

	mu        sync.Mutex
	stats     Stats
	delivered map[string]bool
	err       error
	onChange  func(Stats)
	unsubs    []backend.Unsubscribe
	readyFlag
}

// NewDashboard creates an unmounted dashboard.
func NewDashboard(store backend.Store) *Dashboard {
	return &Dashboard{
		store:     store,
		delivered: make(map[string]bool, 3),
		readyFlag: newReadyFlag(),
	}
}

// Mount opens the three subscriptions. onChange may be nil.
func (d *Dashboard) Mount(onChange func(Stats)) {
	d.mu.Lock()
	d.onChange = onChange
	d.mu.Unlock()

	all := backend.Query{}
	unsubs := []backend.Unsubscribe{
		d.store.Tickets().Subscribe(all, func(tickets []models.Ticket) {
			pending := 0
			for _, t := range tickets {
				if t.Status == models.StatusPending {
					pending++
				}
			}
			d.update(backend.CollectionTickets, func(s *Stats) {
				s.Tickets = len(tickets)
				s.Pending = pending
			})
		}, d.fail),
		d.store.Movies().Subscribe(all, func(movies []models.Movie) {
			d.update(backend.CollectionMovies, func(s *Stats) { s.Movies = len(movies) })
		}, d.fail),
		d.store.Users().Subscribe(all, func(users []models.User) {
			d.update(backend.CollectionUsers, func(s *Stats) { s.Users = len(users) })
		}, d.fail),
	}

	d.mu.Lock()
	d.unsubs = unsubs
	d.mu.Unlock()
}

// Unmount releases every subscription.
func (d *Dashboard) Unmount() {
	d.mu.Lock()
	unsubs := d.unsubs
	d.unsubs = nil
	d.onChange = nil
	d.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// Stats returns the current counters.
func (d *Dashboard) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Loading reports whether any counter is still waiting for its first snapshot.
func (d *Dashboard) Loading() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.delivered) < 3 && d.err == nil
}

// Err returns the subscription failure, if any.
func (d *Dashboard) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Dashboard) update(collection string, apply func(*Stats)) {
	d.mu.Lock()
	apply(&d.stats)
	d.delivered[collection] = true
	stats, onChange, done := d.stats, d.onChange, len(d.delivered) == 3
	d.mu.Unlock()

	if done {
		d.mark()
	}
	if onChange != nil {
		onChange(stats)
	}
}

func (d *Dashboard) fail(err error) {
	slog.Error("dashboard subscription failed", "error", err)
	d.mu.Lock()
	if d.err == nil {
		d.err = err
	}
	stats, onChange := d.stats, d.onChange
	d.mu.Unlock()

	d.mark()
	if onChange != nil {
		onChange(stats)
	}
}
