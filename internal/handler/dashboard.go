package handler

import (
	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/service"
)

// DashboardResponse is the rendered dashboard.
type DashboardResponse struct {
	Stats   service.Stats `json:"stats"`
	Loading bool          `json:"loading"`
}

// Dashboard returns the counters.
// @Summary Dashboard counters
// @Tags dashboard
// @Produce json
// @Success 200 {object} DashboardResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/dashboard [get]
func (h *Handler) Dashboard(c fiber.Ctx) error {
	d := service.NewDashboard(h.store)
	d.Mount(nil)
	defer d.Unmount()

	if err := service.WaitReady(c.Context(), d); err != nil {
		return fail(c, err)
	}
	if err := d.Err(); err != nil {
		return fail(c, err)
	}
	return c.JSON(DashboardResponse{Stats: d.Stats(), Loading: d.Loading()})
}

// DashboardStream streams the counters as they change.
// @Summary Dashboard counters stream
// @Tags dashboard
// @Produce text/event-stream
// @Router /api/v1/dashboard/stream [get]
func (h *Handler) DashboardStream(c fiber.Ctx) error {
	d := service.NewDashboard(h.store)
	return h.stream(c, live{
		name: "dashboard",
		mount: func(changed func()) {
			d.Mount(func(service.Stats) { changed() })
		},
		unmount: d.Unmount,
		render: func() (any, error) {
			if err := d.Err(); err != nil {
				return nil, err
			}
			return DashboardResponse{Stats: d.Stats(), Loading: d.Loading()}, nil
		},
	})
}
