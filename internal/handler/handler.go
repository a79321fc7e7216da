package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/config"
	"cinepasse-backoffice/internal/service"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the backoffice API.
type Handler struct {
	auth      backend.Auth
	store     backend.Store
	blobs     backend.BlobStorage
	session   config.AuthConfig
	maxUpload int
	keepAlive time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewHandler creates a new Handler.
func NewHandler(auth backend.Auth, store backend.Store, blobs backend.BlobStorage, cfg *config.Config) *Handler {
	h := &Handler{
		auth:      auth,
		store:     store,
		blobs:     blobs,
		session:   cfg.Auth,
		maxUpload: cfg.MaxUploadSize,
		keepAlive: cfg.StreamKeepAlive,
		done:      make(chan struct{}),
	}
	if h.keepAlive <= 0 {
		h.keepAlive = 25 * time.Second
	}
	return h
}

// Close ends every open event stream. Call it before shutting the server down.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Health returns service health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/health [get]
func (h *Handler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "backoffice",
	})
}

// ErrorHandler is the app-wide Fiber error handler.
func ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	} else {
		slog.Error("unhandled error", "path", c.Path(), "method", c.Method(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{Error: msg})
}

// fail maps a service or backend error to a response.
func fail(c fiber.Ctx, err error) error {
	status, msg := classify(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "method", c.Method(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotConfirmed):
		return fiber.StatusPreconditionRequired, service.MsgNotConfirmed
	case errors.Is(err, service.ErrTerminalStatus):
		return fiber.StatusConflict, service.MsgTerminalStatus
	case errors.Is(err, backend.ErrNotFound):
		return fiber.StatusNotFound, service.MsgNotFound
	case errors.Is(err, service.ErrTitleRequired):
		return fiber.StatusBadRequest, service.MsgTitleRequired
	case errors.Is(err, service.ErrInvalidContentRating),
		errors.Is(err, service.ErrInvalidPlan),
		errors.Is(err, backend.ErrInvalidField):
		return fiber.StatusBadRequest, service.MsgInvalidInput
	case errors.Is(err, service.ErrUploadFailed):
		return fiber.StatusBadGateway, service.MsgUploadFailed
	case errors.Is(err, backend.ErrPermissionDenied):
		return fiber.StatusForbidden, service.MsgPermissionDenied
	case errors.Is(err, service.ErrWriteFailed):
		return fiber.StatusInternalServerError, service.MsgPermissionDenied
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable, "request cancelled"
	}
	return fiber.StatusInternalServerError, "internal server error"
}

// confirmed reads the confirm query parameter.
func confirmed(c fiber.Ctx) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}
