package handler

import (
	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

// UserListResponse is the rendered user list.
type UserListResponse struct {
	Data  []models.User `json:"data"`
	Total int           `json:"total"`
}

// HistoryResponse is one user's ticket history.
type HistoryResponse struct {
	UserID  string          `json:"user_id"`
	Ordered bool            `json:"ordered"`
	Data    []models.Ticket `json:"data"`
}

// ListUsers returns users matching q.
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "Matches name, email or CPF"
// @Success 200 {object} UserListResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users [get]
func (h *Handler) ListUsers(c fiber.Ctx) error {
	v := service.NewUserDirectory(h.store)
	v.Mount(nil)
	defer v.Unmount()

	if err := service.WaitReady(c.Context(), v); err != nil {
		return fail(c, err)
	}
	if err := v.Err(); err != nil {
		return fail(c, err)
	}
	return c.JSON(userList(v.Search(c.Query("q"))))
}

// UsersStream streams the users matching q.
// @Summary User list stream
// @Tags users
// @Produce text/event-stream
// @Param q query string false "Search text"
// @Router /api/v1/users/stream [get]
func (h *Handler) UsersStream(c fiber.Ctx) error {
	q := c.Query("q")
	v := service.NewUserDirectory(h.store)
	return h.stream(c, live{
		name:    "users",
		mount:   v.Mount,
		unmount: v.Unmount,
		render: func() (any, error) {
			if err := v.Err(); err != nil {
				return nil, err
			}
			return userList(v.Search(q)), nil
		},
	})
}

// UpdateUser writes name, age, plan and admin flag.
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param body body models.UserForm true "Profile fields"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id} [put]
func (h *Handler) UpdateUser(c fiber.Ctx) error {
	var form models.UserForm
	if err := c.Bind().Body(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: service.MsgInvalidInput})
	}

	id := c.Params("id")
	if err := service.NewUserDirectory(h.store).Update(c.Context(), id, form); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"id": id})
}

// DeleteUser removes a profile once confirmed. Credentials are kept.
// @Summary Delete user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Param confirm query bool true "Operator confirmation"
// @Success 204
// @Failure 428 {object} ErrorResponse
// @Router /api/v1/users/{id} [delete]
func (h *Handler) DeleteUser(c fiber.Ctx) error {
	if err := service.NewUserDirectory(h.store).Delete(c.Context(), c.Params("id"), confirmed(c)); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UserHistory returns the tickets bought by a user, newest first when the
// ordered query is available.
// @Summary User ticket history
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} HistoryResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/users/{id}/history [get]
func (h *Handler) UserHistory(c fiber.Ctx) error {
	v := service.NewUserDirectory(h.store)
	defer v.Unmount()

	hist := v.Select(c.Params("id"), nil)
	if err := service.WaitReady(c.Context(), hist); err != nil {
		return fail(c, err)
	}
	if err := hist.Err(); err != nil {
		return fail(c, err)
	}
	return c.JSON(historyOf(hist))
}

// UserHistoryStream streams a user's ticket history.
// @Summary User ticket history stream
// @Tags users
// @Produce text/event-stream
// @Param id path string true "User ID"
// @Router /api/v1/users/{id}/history/stream [get]
func (h *Handler) UserHistoryStream(c fiber.Ctx) error {
	userID := c.Params("id")
	v := service.NewUserDirectory(h.store)

	var hist *service.History
	return h.stream(c, live{
		name: "history",
		mount: func(changed func()) {
			hist = v.Select(userID, changed)
		},
		unmount: v.Unmount,
		render: func() (any, error) {
			if err := hist.Err(); err != nil {
				return nil, err
			}
			return historyOf(hist), nil
		},
	})
}

func userList(users []models.User) UserListResponse {
	if users == nil {
		users = []models.User{}
	}
	return UserListResponse{Data: users, Total: len(users)}
}

func historyOf(h *service.History) HistoryResponse {
	entries := h.Entries()
	if entries == nil {
		entries = []models.Ticket{}
	}
	return HistoryResponse{UserID: h.UserID(), Ordered: h.Ordered(), Data: entries}
}
