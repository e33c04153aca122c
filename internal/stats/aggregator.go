// Package stats derives reporting figures from the current ticket set.
package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/blockhaven/ticketd/internal/domain"
)

// Report is the aggregate snapshot handed to management sessions.
type Report struct {
	TotalTickets    int                         `json:"total_tickets"`
	CountsByReason  map[domain.TicketReason]int `json:"counts_by_reason"`
	ActiveUsers     int                         `json:"active_users"`
	AverageResponse time.Duration               `json:"average_response"`
}

// Aggregator recomputes reports from full ticket sets. It holds no state
// beyond its window size; every call works from the tickets it is given.
type Aggregator struct {
	activeWindow int
}

// NewAggregator returns an aggregator using the given active-user window.
// Non-positive windows fall back to the default of 5.
func NewAggregator(activeWindow int) *Aggregator {
	if activeWindow <= 0 {
		activeWindow = 5
	}
	return &Aggregator{activeWindow: activeWindow}
}

// Compute builds a report over the given tickets.
func (a *Aggregator) Compute(tickets []domain.Ticket) Report {
	return Report{
		TotalTickets:    len(tickets),
		CountsByReason:  countsByReason(tickets),
		ActiveUsers:     a.activeUsers(tickets),
		AverageResponse: averageResponse(tickets),
	}
}

// countsByReason tallies tickets per reason. Reasons with no tickets carry
// no entry at all rather than an explicit zero.
func countsByReason(tickets []domain.Ticket) map[domain.TicketReason]int {
	counts := make(map[domain.TicketReason]int)
	for i := range tickets {
		counts[tickets[i].Reason]++
	}
	return counts
}

// activeUsers counts distinct senders across the most recently created
// tickets, bounded by the window size. Recency follows ticket id order.
func (a *Aggregator) activeUsers(tickets []domain.Ticket) int {
	if len(tickets) == 0 {
		return 0
	}

	recent := make([]domain.Ticket, len(tickets))
	copy(recent, tickets)
	sort.Slice(recent, func(i, j int) bool { return recent[i].ID > recent[j].ID })
	if len(recent) > a.activeWindow {
		recent = recent[:a.activeWindow]
	}

	seen := make(map[string]struct{}, len(recent))
	for i := range recent {
		seen[strings.ToLower(recent[i].Sender)] = struct{}{}
	}
	return len(seen)
}

// averageResponse averages, across tickets that have one, the gap between
// the opening message and the first reply from someone else. Tickets where
// every message shares the opener's sender contribute nothing; with no
// qualifying ticket at all the average is zero.
func averageResponse(tickets []domain.Ticket) time.Duration {
	var total time.Duration
	var qualifying int

	for i := range tickets {
		gap, ok := firstResponseGap(&tickets[i])
		if !ok {
			continue
		}
		total += gap
		qualifying++
	}

	if qualifying == 0 {
		return 0
	}
	return total / time.Duration(qualifying)
}

func firstResponseGap(ticket *domain.Ticket) (time.Duration, bool) {
	if len(ticket.Messages) < 2 {
		return 0, false
	}
	first := ticket.Messages[0]
	for _, msg := range ticket.Messages[1:] {
		if !strings.EqualFold(msg.Sender, first.Sender) {
			return msg.SentAt.Sub(first.SentAt), true
		}
	}
	return 0, false
}
