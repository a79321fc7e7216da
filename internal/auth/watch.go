package auth

import (
	"context"
	"sync"
	"time"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
)

type watcher struct {
	events   chan *models.Principal
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
	onChange func(*models.Principal)
}

// Subscribe reports the principal behind token, then nil once the session
// is signed out (on any instance) or expires.
func (s *Service) Subscribe(token string, onChange func(*models.Principal)) backend.Unsubscribe {
	w := &watcher{
		events:   make(chan *models.Principal, 2),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		onChange: onChange,
	}
	go w.run()

	p, err := s.Verify(context.Background(), token)
	if err != nil {
		w.events <- nil
		return w.close
	}
	w.events <- p

	c, _ := s.parse(token)
	s.mu.Lock()
	set, ok := s.watchers[c.ID]
	if !ok {
		set = make(map[*watcher]struct{})
		s.watchers[c.ID] = set
	}
	set[w] = struct{}{}
	s.mu.Unlock()

	// A sign-out racing with registration would otherwise go unnoticed
	if revoked, err := s.isRevoked(context.Background(), c.ID); err == nil && revoked {
		w.send(nil)
	}

	expiry := time.AfterFunc(time.Until(p.ExpiresAt), func() { w.send(nil) })

	return func() {
		expiry.Stop()
		s.mu.Lock()
		delete(s.watchers[c.ID], w)
		if len(s.watchers[c.ID]) == 0 {
			delete(s.watchers, c.ID)
		}
		s.mu.Unlock()
		w.close()
	}
}

// end notifies local subscribers that session id is over.
func (s *Service) end(id string) {
	s.mu.Lock()
	set := s.watchers[id]
	delete(s.watchers, id)
	s.mu.Unlock()

	for w := range set {
		w.send(nil)
	}
}

func (w *watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case p := <-w.events:
			w.onChange(p)
		}
	}
}

func (w *watcher) send(p *models.Principal) {
	select {
	case w.events <- p:
	case <-w.stop:
	}
}

func (w *watcher) close() {
	w.once.Do(func() {
		close(w.stop)
		<-w.done
	})
}
