package handler

import (
	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/middleware"
	"cinepasse-backoffice/internal/service"
)

// Session reports the gate state for the request's session.
// @Summary Session state
// @Tags session
// @Produce json
// @Param view query string false "Selected view" Enums(dashboard,tickets,movies,users)
// @Success 200 {object} service.GateStatus
// @Router /api/v1/session [get]
func (h *Handler) Session(c fiber.Ctx) error {
	gate := service.NewGate(h.auth)
	gate.Select(c.Query("view", service.ViewDashboard))
	gate.Mount(middleware.SessionToken(c, h.session.CookieName), nil)
	defer gate.Unmount()

	if err := service.WaitReady(c.Context(), gate); err != nil {
		return fail(c, err)
	}
	return c.JSON(gate.Status())
}

// SessionStream streams gate state changes, ending in "login" on sign-out
// or expiry.
// @Summary Session state stream
// @Tags session
// @Produce text/event-stream
// @Param view query string false "Selected view"
// @Router /api/v1/session/stream [get]
func (h *Handler) SessionStream(c fiber.Ctx) error {
	token := middleware.SessionToken(c, h.session.CookieName)
	gate := service.NewGate(h.auth)
	gate.Select(c.Query("view", service.ViewDashboard))

	return h.stream(c, live{
		name: "session",
		mount: func(changed func()) {
			gate.Mount(token, func(service.GateStatus) { changed() })
		},
		unmount: gate.Unmount,
		render:  func() (any, error) { return gate.Status(), nil },
	})
}

// Layout returns the navigation for the selected view.
// @Summary Layout shell
// @Tags session
// @Produce json
// @Param view query string false "Selected view"
// @Success 200 {object} service.Shell
// @Router /api/v1/layout [get]
func (h *Handler) Layout(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"principal": middleware.Principal(c),
		"layout":    service.Layout(c.Query("view", service.ViewDashboard)),
	})
}
