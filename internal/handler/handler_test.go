package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/auth"
	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/backend/memory"
	"cinepasse-backoffice/internal/config"
	"cinepasse-backoffice/internal/handler"
	"cinepasse-backoffice/internal/middleware"
	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

const (
	cookieName = "cinepasse_session"
	adminEmail = "admin@cinepasse.com"
	adminPass  = "s3nha-forte"
)

type testEnv struct {
	app   *fiber.App
	h     *handler.Handler
	store *memory.Store
	blobs *memory.Blobs
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		MaxUploadSize:   1 << 20,
		StreamKeepAlive: 20 * time.Millisecond,
		Auth: config.AuthConfig{
			SigningKey: "test-key",
			SessionTTL: time.Hour,
			CookieName: cookieName,
		},
	}

	store := memory.New(backend.Index{Collection: backend.CollectionTickets, Field: "purchaser_id", OrderBy: "created_at"})
	blobs := memory.NewBlobs("http://cdn")
	creds := memory.NewCredentials()
	if _, err := auth.SeedAdmin(context.Background(), creds, store.Users(), adminEmail, adminPass, "Admin"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	authSvc := auth.NewService(creds, cfg.Auth, nil)

	h := handler.NewHandler(authSvc, store, blobs, cfg)
	t.Cleanup(h.Close)

	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})
	app.Use(middleware.RequireSession(authSvc, cookieName))
	h.RegisterRoutes(app, func(c fiber.Ctx) error { return c.Next() })

	return &testEnv{app: app, h: h, store: store, blobs: blobs}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	// bcrypt makes logins slower than the default one second test timeout
	resp, err := e.app.Test(req, fiber.TestConfig{Timeout: 0})
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	body := `{"email":"` + adminEmail + `","password":"` + adminPass + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := e.do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			if !c.HttpOnly {
				t.Fatalf("session cookie is not HttpOnly")
			}
			return c.Value
		}
	}
	t.Fatalf("login did not set %s", cookieName)
	return ""
}

func authed(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	return req
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthIsPublic(t *testing.T) {
	env := setup(t)
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := setup(t)

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/tickets", "/api/v1/movies", "/api/v1/users"} {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("GET %s = %d, want 401", path, resp.StatusCode)
		}
		if got := decode[handler.ErrorResponse](t, resp); got.Error != service.MsgSessionRequired {
			t.Fatalf("GET %s error = %q", path, got.Error)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	if resp := env.do(t, req); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad bearer token = %d, want 401", resp.StatusCode)
	}
}

func TestLoginFailures(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"wrong password", `{"email":"` + adminEmail + `","password":"nope"}`, service.MsgWrongPassword},
		{"unknown user", `{"email":"ghost@cinepasse.com","password":"x"}`, service.MsgUserNotFound},
		{"empty form", `{}`, service.MsgBadCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp := env.do(t, req)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
			if got := decode[handler.ErrorResponse](t, resp); got.Error != tt.want {
				t.Fatalf("error = %q, want %q", got.Error, tt.want)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := setup(t)

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	if got := decode[service.GateStatus](t, resp); got.State != service.GateLogin {
		t.Fatalf("anonymous session state = %s, want login", got.State)
	}

	token := env.login(t)

	resp = env.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/session?view=tickets", nil), token))
	got := decode[service.GateStatus](t, resp)
	if got.State != service.GateMain || got.Principal == nil || got.Principal.Email != adminEmail {
		t.Fatalf("session = %+v, want main", got)
	}
	if got.Layout == nil || got.Layout.Current != service.ViewTickets {
		t.Fatalf("layout = %+v", got.Layout)
	}

	resp = env.do(t, authed(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp = env.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), token))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dashboard after logout = %d, want 401", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	env := setup(t)
	env.store.TicketsCollection().Put("t1", models.Ticket{ID: "t1", Status: models.StatusPending})
	env.store.TicketsCollection().Put("t2", models.Ticket{ID: "t2", Status: models.StatusApproved})
	env.store.MoviesCollection().Put("m1", models.Movie{ID: "m1", Title: "Bacurau"})
	token := env.login(t)

	resp := env.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[handler.DashboardResponse](t, resp)
	// The seeded admin profile is the only user
	want := service.Stats{Tickets: 2, Pending: 1, Movies: 1, Users: 1}
	if got.Stats != want || got.Loading {
		t.Fatalf("dashboard = %+v, want %+v", got, want)
	}
}

func TestTicketTransitions(t *testing.T) {
	env := setup(t)
	env.store.TicketsCollection().Put("p", models.Ticket{ID: "p", Status: models.StatusPending, CreatedAt: time.Now()})
	env.store.TicketsCollection().Put("r", models.Ticket{ID: "r", Status: models.StatusRejected, CreatedAt: time.Now()})
	token := env.login(t)

	post := func(path string) *http.Response {
		return env.do(t, authed(httptest.NewRequest(http.MethodPost, path, nil), token))
	}

	if resp := post("/api/v1/tickets/p/approve"); resp.StatusCode != http.StatusPreconditionRequired {
		t.Fatalf("approve without confirm = %d, want 428", resp.StatusCode)
	}
	if resp := post("/api/v1/tickets/r/approve?confirm=true"); resp.StatusCode != http.StatusConflict {
		t.Fatalf("approve rejected ticket = %d, want 409", resp.StatusCode)
	}
	if resp := post("/api/v1/tickets/missing/reject?confirm=true"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("reject missing ticket = %d, want 404", resp.StatusCode)
	}

	resp := post("/api/v1/tickets/p/approve?confirm=true")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve = %d", resp.StatusCode)
	}
	ticket, _ := env.store.Tickets().Get(context.Background(), "p")
	if ticket.Status != models.StatusApproved {
		t.Fatalf("status = %s, want Approved", ticket.Status)
	}

	env.store.TicketsCollection().FailWrites(backend.ErrPermissionDenied)
	env.store.TicketsCollection().Put("p2", models.Ticket{ID: "p2", Status: models.StatusPending, CreatedAt: time.Now()})
	resp = post("/api/v1/tickets/p2/reject?confirm=true")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("reject with denied write = %d, want 403", resp.StatusCode)
	}
	if got := decode[handler.ErrorResponse](t, resp); got.Error != service.MsgPermissionDenied {
		t.Fatalf("error = %q", got.Error)
	}
}

func TestTicketBoardFilters(t *testing.T) {
	env := setup(t)
	env.store.TicketsCollection().Put("a", models.Ticket{ID: "a", MovieTitle: "Bacurau", Status: models.StatusPending, CreatedAt: time.Now()})
	env.store.TicketsCollection().Put("b", models.Ticket{ID: "b", MovieTitle: "Aquarius", Status: models.StatusApproved, CreatedAt: time.Now()})
	token := env.login(t)

	resp := env.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/tickets?status=approved", nil), token))
	board := decode[service.TicketBoard](t, resp)
	if board.Total != 2 || len(board.Rows) != 1 || board.Rows[0].ID != "b" {
		t.Fatalf("board = %+v", board)
	}
}

func TestMovieCreateWithPoster(t *testing.T) {
	env := setup(t)
	token := env.login(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("title", "Bacurau")
	_ = mw.WriteField("average_rating", "4.5")
	fw, err := mw.CreateFormFile("poster", "cartaz.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = fw.Write([]byte("\x89PNG fake"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/movies", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := env.do(t, authed(req, token))
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("create status = %d: %s", resp.StatusCode, raw)
	}
	id := decode[map[string]string](t, resp)["id"]

	movie, err := env.store.Movies().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if movie.AverageRating == nil || *movie.AverageRating != 4.5 {
		t.Fatalf("average rating = %v", movie.AverageRating)
	}
	if !strings.HasPrefix(movie.PosterURL, "http://cdn/blobs/movies/") {
		t.Fatalf("poster = %q", movie.PosterURL)
	}

	// Blobs are public so the catalog can render posters
	resp = env.do(t, httptest.NewRequest(http.MethodGet, strings.TrimPrefix(movie.PosterURL, "http://cdn"), nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("blob status = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "\x89PNG fake" {
		t.Fatalf("blob = %q", data)
	}
}

func TestMovieValidationAndDelete(t *testing.T) {
	env := setup(t)
	env.store.MoviesCollection().Put("m1", models.Movie{ID: "m1", Title: "Aquarius"})
	token := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/movies", strings.NewReader(`{"title":" "}`))
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, authed(req, token))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("create without title = %d, want 400", resp.StatusCode)
	}
	if got := decode[handler.ErrorResponse](t, resp); got.Error != service.MsgTitleRequired {
		t.Fatalf("error = %q", got.Error)
	}

	resp = env.do(t, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/movies/m1", nil), token))
	if resp.StatusCode != http.StatusPreconditionRequired {
		t.Fatalf("delete without confirm = %d, want 428", resp.StatusCode)
	}
	resp = env.do(t, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/movies/m1?confirm=true", nil), token))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", resp.StatusCode)
	}
	if env.store.MoviesCollection().Len() != 0 {
		t.Fatalf("movie still stored")
	}
}

func TestUserEditAndHistory(t *testing.T) {
	env := setup(t)
	env.store.UsersCollection().Put("u1", models.User{ID: "u1", Name: "Ana", Email: "ana@mail.com", Plan: models.PlanNone})
	env.store.TicketsCollection().Put("t1", models.Ticket{ID: "t1", PurchaserID: "u1", CreatedAt: time.Now()})
	token := env.login(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/u1", strings.NewReader(`{"name":"Ana Maria","age":31,"plan":"premium"}`))
	req.Header.Set("Content-Type", "application/json")
	if resp := env.do(t, authed(req, token)); resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	u, _ := env.store.Users().Get(context.Background(), "u1")
	if u.Name != "Ana Maria" || u.Plan != models.PlanPremium || u.Age == nil || *u.Age != 31 {
		t.Fatalf("user = %+v", u)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/u1", strings.NewReader(`{"name":"Ana Maria","age":"32","plan":"premium"}`))
	req.Header.Set("Content-Type", "application/json")
	if resp := env.do(t, authed(req, token)); resp.StatusCode != http.StatusOK {
		t.Fatalf("update with text age status = %d", resp.StatusCode)
	}
	u, _ = env.store.Users().Get(context.Background(), "u1")
	if u.Age == nil || *u.Age != 32 {
		t.Fatalf("age = %v, want 32", u.Age)
	}

	resp := env.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/users?q=maria", nil), token))
	list := decode[handler.UserListResponse](t, resp)
	if list.Total != 1 || list.Data[0].ID != "u1" {
		t.Fatalf("users = %+v", list)
	}

	resp = env.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/history", nil), token))
	hist := decode[handler.HistoryResponse](t, resp)
	if !hist.Ordered || len(hist.Data) != 1 || hist.Data[0].ID != "t1" {
		t.Fatalf("history = %+v", hist)
	}
}
