package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/database"
	"cinepasse-backoffice/internal/models"
)

// Store is the PostgreSQL backend.Store. Live subscriptions are refreshed
// from LISTEN/NOTIFY events raised by table triggers.
type Store struct {
	hub     *backend.Hub
	tickets *Collection[models.Ticket]
	movies  *Collection[models.Movie]
	users   *Collection[models.User]
}

// NewStore creates a Store over db.
func NewStore(db *sql.DB) *Store {
	hub := backend.NewHub()
	return &Store{
		hub:     hub,
		tickets: newCollection(db, hub, ticketsTable),
		movies:  newCollection(db, hub, moviesTable),
		users:   newCollection(db, hub, usersTable),
	}
}

func (s *Store) Tickets() backend.Collection[models.Ticket] { return s.tickets }
func (s *Store) Movies() backend.Collection[models.Movie]   { return s.movies }
func (s *Store) Users() backend.Collection[models.User]     { return s.users }

// Listen relays change notifications to live subscriptions until ctx is
// done. After a reconnect every subscription reloads, since notifications
// sent while disconnected are lost.
func (s *Store) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("change listener event", "event", ev, "error", err)
		}
		if ev == pq.ListenerEventReconnected {
			s.hub.NotifyAll()
		}
	})
	if err := listener.Listen(database.ChangeChannel); err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen %s: %w", database.ChangeChannel, err)
	}
	slog.Info("listening for record changes", "channel", database.ChangeChannel)

	go func() {
		defer listener.Close()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					s.hub.NotifyAll()
					continue
				}
				slog.Debug("record change", "table", n.Extra)
				s.hub.Notify(n.Extra)
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					slog.Warn("change listener ping failed", "error", err)
				}
			}
		}
	}()
	return nil
}
