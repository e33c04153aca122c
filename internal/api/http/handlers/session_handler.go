package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/blockhaven/ticketd/internal/api/dto"
	"github.com/blockhaven/ticketd/internal/auth"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/internal/service"
	"github.com/blockhaven/ticketd/pkg/util"
)

// SessionHandler exposes the bridge-facing session and presence endpoints.
type SessionHandler struct {
	authService *service.AuthService
	dir         directory.Directory
}

// NewSessionHandler constructs handler.
func NewSessionHandler(authService *service.AuthService, dir directory.Directory) *SessionHandler {
	return &SessionHandler{authService: authService, dir: dir}
}

// Open handles POST /session.
func (h *SessionHandler) Open(c *fiber.Ctx) error {
	var req dto.OpenSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	token, expiresAt, err := h.authService.OpenSession(c.UserContext(), req.BridgeKey, req.Name, req.Elevated, req.Server)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SessionResponse{Token: token, ExpiresAt: expiresAt}})
}

// Join handles POST /presence/join.
func (h *SessionHandler) Join(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	if err := h.dir.Join(c.UserContext(), session.Actor.Name); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "joined"}})
}

// Leave handles POST /presence/leave.
func (h *SessionHandler) Leave(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	if err := h.dir.Leave(c.UserContext(), session.Actor.Name); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "left"}})
}
