package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/handler"
	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

// serve runs the app on a loopback listener and returns its base URL.
// Event streams need a real connection; app.Test waits for the whole body.
func (e *testEnv) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		_ = e.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	t.Cleanup(func() {
		e.h.Close()
		_ = e.app.ShutdownWithTimeout(2 * time.Second)
	})
	return "http://" + ln.Addr().String()
}

type eventStream struct {
	t      *testing.T
	resp   *http.Response
	r      *bufio.Reader
	cancel context.CancelFunc
}

func openStream(t *testing.T, url, token string) *eventStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req = authed(req, token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("GET %s: %v", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.Fatalf("GET %s status = %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	s := &eventStream{t: t, resp: resp, r: bufio.NewReader(resp.Body), cancel: cancel}
	t.Cleanup(s.Close)
	return s
}

// Close drops the client side of the connection.
func (s *eventStream) Close() {
	s.cancel()
	s.resp.Body.Close()
}

// next returns the following event, skipping keep-alive comments.
func (s *eventStream) next() (string, []byte) {
	s.t.Helper()
	var event string
	var data []byte
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			s.t.Fatalf("read event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" {
				return event, data
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = []byte(strings.TrimPrefix(line, "data: "))
		}
	}
}

// until decodes snapshot events into T until done accepts one.
func until[T any](s *eventStream, what string, done func(T) bool) T {
	s.t.Helper()
	for i := 0; i < 20; i++ {
		event, data := s.next()
		if event != "snapshot" {
			s.t.Fatalf("event %q (%s) while waiting for %s", event, data, what)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			s.t.Fatalf("decode %s: %v", data, err)
		}
		if done(v) {
			return v
		}
	}
	s.t.Fatalf("no snapshot with %s", what)
	var zero T
	return zero
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTicketsStreamFollowsChanges(t *testing.T) {
	env := setup(t)
	env.store.TicketsCollection().Put("t1", models.Ticket{ID: "t1", MovieTitle: "Bacurau", Status: models.StatusPending, CreatedAt: time.Now()})
	token := env.login(t)
	base := env.serve(t)

	s := openStream(t, base+"/api/v1/tickets/stream", token)
	board := until(s, "first ticket", func(b service.TicketBoard) bool { return b.Total == 1 })
	if board.Rows[0].ID != "t1" {
		t.Fatalf("board = %+v", board)
	}

	env.store.TicketsCollection().Put("t2", models.Ticket{ID: "t2", MovieTitle: "Aquarius", Status: models.StatusPending, CreatedAt: time.Now().Add(time.Minute)})
	board = until(s, "second ticket", func(b service.TicketBoard) bool { return b.Total == 2 })
	if board.Rows[0].ID != "t2" {
		t.Fatalf("newest row = %s, want t2", board.Rows[0].ID)
	}
}

func TestSessionStreamEndsInLoginAfterLogout(t *testing.T) {
	env := setup(t)
	token := env.login(t)
	base := env.serve(t)

	s := openStream(t, base+"/api/v1/session/stream?view=movies", token)
	status := until(s, "main state", func(g service.GateStatus) bool { return g.State == service.GateMain })
	if status.Layout == nil || status.Layout.Current != service.ViewMovies {
		t.Fatalf("layout = %+v", status.Layout)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/api/v1/auth/logout", nil)
	resp, err := http.DefaultClient.Do(authed(req, token))
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	status = until(s, "login state", func(g service.GateStatus) bool { return g.State == service.GateLogin })
	if status.Principal != nil || status.Layout != nil {
		t.Fatalf("signed-out status still carries a session: %+v", status)
	}
}

func TestHistoryStreamReleasedOnDisconnect(t *testing.T) {
	env := setup(t)
	env.store.TicketsCollection().Put("t1", models.Ticket{ID: "t1", PurchaserID: "u1", CreatedAt: time.Now()})
	token := env.login(t)
	base := env.serve(t)
	hub := env.store.Hub()

	s := openStream(t, base+"/api/v1/users/u1/history/stream", token)
	hist := until(s, "history", func(h handler.HistoryResponse) bool { return len(h.Data) == 1 })
	if hist.UserID != "u1" || !hist.Ordered {
		t.Fatalf("history = %+v", hist)
	}
	if n := hub.Len(backend.CollectionTickets); n != 1 {
		t.Fatalf("ticket subscriptions while streaming = %d, want 1", n)
	}

	s.Close()
	waitFor(t, "history subscription release", func() bool { return hub.Len(backend.CollectionTickets) == 0 })
}

func TestStreamsEndWhenHandlerCloses(t *testing.T) {
	env := setup(t)
	token := env.login(t)
	base := env.serve(t)

	s := openStream(t, base+"/api/v1/dashboard/stream", token)
	stats := until(s, "loaded counters", func(d handler.DashboardResponse) bool { return !d.Loading })
	if stats.Stats.Users != 1 {
		t.Fatalf("dashboard = %+v", stats)
	}

	env.h.Close()
	for {
		_, err := s.r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("stream did not end cleanly: %v", err)
		}
	}
	waitFor(t, "dashboard subscriptions release", func() bool {
		return env.store.Hub().Len(backend.CollectionUsers) == 0
	})
}
