package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/blockhaven/ticketd/internal/api/dto"
	"github.com/blockhaven/ticketd/internal/auth"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/pkg/util"
)

// NoticesHandler drains buffered notices for polling clients. Standalone
// deployments buffer notices in process; under the push-based Redis sink
// there is nothing to drain and the list is always empty.
type NoticesHandler struct {
	sink directory.BufferedSink
}

// NewNoticesHandler constructs handler. sink may be nil when delivery is
// push-based.
func NewNoticesHandler(sink directory.BufferedSink) *NoticesHandler {
	return &NoticesHandler{sink: sink}
}

// List handles GET /notices.
func (h *NoticesHandler) List(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}

	if h.sink == nil {
		return c.JSON(fiber.Map{"data": []dto.NoticeResponse{}})
	}

	notices, err := h.sink.Drain(c.UserContext(), session.Actor.Name)
	if err != nil {
		return err
	}
	items := make([]dto.NoticeResponse, 0, len(notices))
	for _, notice := range notices {
		items = append(items, dto.NoticeResponse{
			Kind:   notice.Kind,
			Ticket: notice.Ticket,
			Actor:  notice.Actor,
			Status: notice.Status,
			SentAt: notice.SentAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
