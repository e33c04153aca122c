package dto

import (
	"time"

	"github.com/blockhaven/ticketd/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Text string `json:"text"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// MessageResponse represents one thread message.
type MessageResponse struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// TicketResponse carries a full ticket including its thread.
type TicketResponse struct {
	ID        int64               `json:"id"`
	ShortID   string              `json:"short_id"`
	Status    domain.TicketStatus `json:"status"`
	Sender    string              `json:"sender"`
	Server    string              `json:"server"`
	Reason    domain.TicketReason `json:"reason"`
	Messages  []MessageResponse   `json:"messages"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// StatsResponse carries the aggregate report for management syncs.
type StatsResponse struct {
	TotalTickets      int            `json:"total_tickets"`
	CountsByReason    map[string]int `json:"counts_by_reason"`
	ActiveUsers       int            `json:"active_users"`
	AverageResponseMS int64          `json:"average_response_ms"`
}

// SyncResponse answers GET /sync.
type SyncResponse struct {
	CanManage bool             `json:"can_manage"`
	Tickets   []TicketResponse `json:"tickets"`
	Stats     *StatsResponse   `json:"stats,omitempty"`
}
