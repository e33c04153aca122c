package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnassignedID marks a ticket that has not been persisted yet. The store is
// the only identifier authority; callers never pick ids themselves.
const UnassignedID int64 = -1

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusAnswered TicketStatus = "ANSWERED"
	TicketStatusClosed   TicketStatus = "CLOSED"
)

// ParseTicketStatus maps a wire string onto a known status.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch TicketStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case TicketStatusOpen:
		return TicketStatusOpen, true
	case TicketStatusAnswered:
		return TicketStatusAnswered, true
	case TicketStatusClosed:
		return TicketStatusClosed, true
	}
	return "", false
}

// TicketReason classifies what a ticket is about.
type TicketReason string

const (
	ReasonBug          TicketReason = "BUG"
	ReasonPlayerReport TicketReason = "PLAYER_REPORT"
	ReasonLostItem     TicketReason = "LOST_ITEM"
	ReasonQuestion     TicketReason = "QUESTION"
	ReasonOther        TicketReason = "OTHER"
)

// ParseTicketReason maps a wire string onto a known reason, defaulting to OTHER.
func ParseTicketReason(s string) TicketReason {
	switch TicketReason(strings.ToUpper(strings.TrimSpace(s))) {
	case ReasonBug:
		return ReasonBug
	case ReasonPlayerReport:
		return ReasonPlayerReport
	case ReasonLostItem:
		return ReasonLostItem
	case ReasonQuestion:
		return ReasonQuestion
	}
	return ReasonOther
}

// Ticket is the aggregate for player support requests. Tickets move through
// OPEN -> ANSWERED (and back) -> CLOSED; the message thread is append-only and
// never empty.
type Ticket struct {
	ID        int64
	Status    TicketStatus
	Sender    string
	Server    string
	Reason    TicketReason
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTicket builds an unpersisted OPEN ticket carrying its initial message.
func NewTicket(sender, server string, reason TicketReason, text string) *Ticket {
	now := time.Now().UTC()
	return &Ticket{
		ID:       UnassignedID,
		Status:   TicketStatusOpen,
		Sender:   sender,
		Server:   server,
		Reason:   reason,
		Messages: []Message{{Sender: sender, Text: text, SentAt: now}},
	}
}

// ShortID returns the display form of the ticket identifier, e.g. "#42".
func (t *Ticket) ShortID() string {
	return fmt.Sprintf("#%d", t.ID)
}

// Append adds a message to the end of the thread. Prior messages are never
// touched; ordering is insertion order.
func (t *Ticket) Append(msg Message) {
	t.Messages = append(t.Messages, msg)
}

// Participants returns the distinct senders across the thread in order of
// first appearance. The comparison is case-insensitive; the first spelling
// seen is the one reported.
func (t *Ticket) Participants() []string {
	seen := make(map[string]struct{}, len(t.Messages))
	names := make([]string, 0, len(t.Messages))
	for _, msg := range t.Messages {
		key := strings.ToLower(msg.Sender)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, msg.Sender)
	}
	return names
}

// Clone returns a deep copy. Store and callers exchange copies so in-memory
// state never diverges from what was persisted.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Messages = make([]Message, len(t.Messages))
	copy(cp.Messages, t.Messages)
	return &cp
}
