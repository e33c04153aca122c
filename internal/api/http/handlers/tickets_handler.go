package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/blockhaven/ticketd/internal/api/dto"
	"github.com/blockhaven/ticketd/internal/auth"
	"github.com/blockhaven/ticketd/internal/domain"
	"github.com/blockhaven/ticketd/internal/service"
	"github.com/blockhaven/ticketd/internal/stats"
	"github.com/blockhaven/ticketd/pkg/util"
)

// TicketsHandler exposes the ticket lifecycle endpoints. Operations on absent
// tickets answer 204: stale ids are expected when several sessions race over
// the same ticket, and the bridge treats the empty success as "nothing to do".
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	reason := domain.ParseTicketReason(req.Reason)
	ticket, err := h.service.Create(c.UserContext(), session.Actor, session.Server, reason, req.Text)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.AddMessage(c.UserContext(), session.Actor, id, req.Text)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	status, ok := domain.ParseTicketStatus(req.Status)
	if !ok {
		return util.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), session.Actor, id, status)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), session.Actor, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Sync GET /sync.
func (h *TicketsHandler) Sync(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}

	result, err := h.service.Sync(c.UserContext(), session.Actor)
	if err != nil {
		return err
	}
	resp := dto.SyncResponse{
		CanManage: result.CanManage,
		Tickets:   ticketResponses(result.Tickets),
		Stats:     statsResponse(result.Stats),
	}
	return c.JSON(fiber.Map{"data": resp})
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, util.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	msgs := make([]dto.MessageResponse, 0, len(ticket.Messages))
	for _, msg := range ticket.Messages {
		msgs = append(msgs, dto.MessageResponse{Sender: msg.Sender, Text: msg.Text, SentAt: msg.SentAt})
	}
	return dto.TicketResponse{
		ID:        ticket.ID,
		ShortID:   ticket.ShortID(),
		Status:    ticket.Status,
		Sender:    ticket.Sender,
		Server:    ticket.Server,
		Reason:    ticket.Reason,
		Messages:  msgs,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func statsResponse(report *stats.Report) *dto.StatsResponse {
	if report == nil {
		return nil
	}
	counts := make(map[string]int, len(report.CountsByReason))
	for reason, n := range report.CountsByReason {
		counts[string(reason)] = n
	}
	return &dto.StatsResponse{
		TotalTickets:      report.TotalTickets,
		CountsByReason:    counts,
		ActiveUsers:       report.ActiveUsers,
		AverageResponseMS: report.AverageResponse.Milliseconds(),
	}
}
