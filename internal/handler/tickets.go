package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

func ticketFilter(c fiber.Ctx) service.TicketFilter {
	return service.TicketFilter{
		Query:  c.Query("q"),
		Status: c.Query("status", "all"),
	}
}

// ListTickets returns tickets newest first, filtered locally.
// @Summary List tickets
// @Tags tickets
// @Produce json
// @Param q query string false "Matches movie title, purchaser id or purchase code"
// @Param status query string false "Status filter" Enums(all,Pending,Approved,Rejected) default(all)
// @Success 200 {object} service.TicketBoard
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/tickets [get]
func (h *Handler) ListTickets(c fiber.Ctx) error {
	v := service.NewTicketReview(h.store)
	v.Mount(nil)
	defer v.Unmount()

	if err := service.WaitReady(c.Context(), v); err != nil {
		return fail(c, err)
	}
	if err := v.Err(); err != nil {
		return fail(c, err)
	}
	if err := v.SettleNames(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(v.Board(ticketFilter(c)))
}

// TicketsStream streams the filtered ticket board.
// @Summary Ticket board stream
// @Tags tickets
// @Produce text/event-stream
// @Param q query string false "Search text"
// @Param status query string false "Status filter"
// @Router /api/v1/tickets/stream [get]
func (h *Handler) TicketsStream(c fiber.Ctx) error {
	filter := ticketFilter(c)
	v := service.NewTicketReview(h.store)
	return h.stream(c, live{
		name:    "tickets",
		mount:   v.Mount,
		unmount: v.Unmount,
		render: func() (any, error) {
			if err := v.Err(); err != nil {
				return nil, err
			}
			return v.Board(filter), nil
		},
	})
}

// ApproveTicket approves a pending ticket.
// @Summary Approve ticket
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Param confirm query bool true "Operator confirmation"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Router /api/v1/tickets/{id}/approve [post]
func (h *Handler) ApproveTicket(c fiber.Ctx) error {
	return h.transition(c, (*service.TicketReview).Approve, models.StatusApproved)
}

// RejectTicket rejects a pending ticket.
// @Summary Reject ticket
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Param confirm query bool true "Operator confirmation"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Failure 428 {object} ErrorResponse
// @Router /api/v1/tickets/{id}/reject [post]
func (h *Handler) RejectTicket(c fiber.Ctx) error {
	return h.transition(c, (*service.TicketReview).Reject, models.StatusRejected)
}

type transitionFunc func(*service.TicketReview, context.Context, string, bool) error

func (h *Handler) transition(c fiber.Ctx, apply transitionFunc, status models.TicketStatus) error {
	id := c.Params("id")
	if !confirmed(c) {
		return fail(c, service.ErrNotConfirmed)
	}

	v := service.NewTicketReview(h.store)
	v.Mount(nil)
	defer v.Unmount()

	if err := service.WaitReady(c.Context(), v); err != nil {
		return fail(c, err)
	}
	if err := v.Err(); err != nil {
		return fail(c, err)
	}
	if err := apply(v, c.Context(), id, true); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"id": id, "status": status})
}
