package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/middleware"
	"cinepasse-backoffice/internal/service"
)

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Login signs an administrator in and sets the session cookie.
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *Handler) Login(c fiber.Ctx) error {
	var req LoginRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: service.MsgLoginFailed})
	}

	session, err := h.auth.SignIn(c.Context(), req.Email, req.Password)
	if err != nil {
		status := fiber.StatusUnauthorized
		if errors.Is(err, backend.ErrTooManyRequests) {
			status = fiber.StatusTooManyRequests
		}
		if !isCredentialError(err) {
			slog.Error("sign-in failed", "error", err)
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(ErrorResponse{Error: service.AuthMessage(err)})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.session.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.Principal.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.session.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"principal": session.Principal,
		"token":     session.Token,
	})
}

// Logout ends the current session and clears the cookie.
// @Summary Sign out
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/auth/logout [post]
func (h *Handler) Logout(c fiber.Ctx) error {
	token := middleware.SessionToken(c, h.session.CookieName)
	if token != "" {
		if err := service.NewGate(h.auth).Logout(c.Context(), token); err != nil {
			return fail(c, err)
		}
	}
	c.ClearCookie(h.session.CookieName)
	return c.JSON(fiber.Map{"status": "signed_out"})
}

func isCredentialError(err error) bool {
	return errors.Is(err, backend.ErrInvalidCredential) ||
		errors.Is(err, backend.ErrUserNotFound) ||
		errors.Is(err, backend.ErrWrongPassword) ||
		errors.Is(err, backend.ErrTooManyRequests)
}
