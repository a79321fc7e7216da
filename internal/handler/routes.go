package handler

import (
	"github.com/gofiber/fiber/v3"
)

// RegisterRoutes mounts the API and blob routes on app.
func (h *Handler) RegisterRoutes(app *fiber.App, loginLimiter fiber.Handler) {
	app.Get("/blobs/*", h.Blob)

	api := app.Group("/api/v1")
	api.Get("/health", h.Health)

	api.Post("/auth/login", loginLimiter, h.Login)
	api.Post("/auth/logout", h.Logout)

	api.Get("/session", h.Session)
	api.Get("/session/stream", h.SessionStream)
	api.Get("/layout", h.Layout)

	api.Get("/dashboard", h.Dashboard)
	api.Get("/dashboard/stream", h.DashboardStream)

	api.Get("/tickets", h.ListTickets)
	api.Get("/tickets/stream", h.TicketsStream)
	api.Post("/tickets/:id/approve", h.ApproveTicket)
	api.Post("/tickets/:id/reject", h.RejectTicket)

	api.Get("/movies", h.ListMovies)
	api.Get("/movies/stream", h.MoviesStream)
	api.Post("/movies", h.CreateMovie)
	api.Put("/movies/:id", h.UpdateMovie)
	api.Delete("/movies/:id", h.DeleteMovie)

	api.Get("/users", h.ListUsers)
	api.Get("/users/stream", h.UsersStream)
	api.Put("/users/:id", h.UpdateUser)
	api.Delete("/users/:id", h.DeleteUser)
	api.Get("/users/:id/history", h.UserHistory)
	api.Get("/users/:id/history/stream", h.UserHistoryStream)
}
