package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/access"
	"github.com/blockhaven/ticketd/internal/domain"
	"github.com/blockhaven/ticketd/internal/events"
	"github.com/blockhaven/ticketd/internal/repository"
	"github.com/blockhaven/ticketd/internal/stats"
	"github.com/blockhaven/ticketd/pkg/util"
)

// TicketService coordinates the ticket lifecycle: policy checks before every
// mutation, persistence through the repository, events after the write lands.
type TicketService struct {
	tickets    repository.TicketRepository
	policy     *access.Policy
	aggregator *stats.Aggregator
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu       sync.RWMutex
	snapshot []domain.Ticket
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Policy     *access.Policy
	Aggregator *stats.Aggregator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// SyncResult is the answer to a sync request. Stats is only filled in for
// management-capable actors, alongside the full ticket set; everyone else
// gets their own tickets.
type SyncResult struct {
	CanManage bool
	Tickets   []domain.Ticket
	Stats     *stats.Report
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		policy:     deps.Policy,
		aggregator: deps.Aggregator,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Create opens a ticket for the actor with a single initial message. Blank
// text is dropped without a ticket and without an error; stale client resends
// of empty forms are expected and not worth a rejection round-trip.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, server string, reason domain.TicketReason, text string) (*domain.Ticket, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ticket := domain.NewTicket(actor.Name, server, reason, text)
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Ticket: *ticket.Clone(),
		},
	})
	return ticket, nil
}

// UpdateStatus moves a ticket to the given status. An absent ticket is a
// silent no-op; the actor must own the ticket or hold management access.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAccessTicket(ctx, ticket, actor) {
		return nil, util.NewAccessDenied(ticket.ShortID())
	}

	oldStatus := ticket.Status
	ticket.Status = status
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			Ticket:    *ticket.Clone(),
			OldStatus: oldStatus,
			NewStatus: status,
		},
	})
	return ticket, nil
}

// AddMessage appends a message authored by the actor to the ticket's thread.
// An absent ticket is a silent no-op. Unlike Create there is no blank-text
// guard here; follow-up messages pass through as sent.
func (s *TicketService) AddMessage(ctx context.Context, actor domain.Actor, id int64, text string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.policy.CanAccessTicket(ctx, ticket, actor) {
		return nil, util.NewAccessDenied(ticket.ShortID())
	}

	msg := domain.NewMessage(actor.Name, text)
	ticket.Append(msg)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketMessageAddedPayload{
			Ticket:  *ticket.Clone(),
			Message: msg,
		},
	})
	return ticket, nil
}

// Delete removes a ticket. An absent ticket is a silent no-op; participants
// of the removed thread are notified through the deleted event.
func (s *TicketService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !s.policy.CanAccessTicket(ctx, ticket, actor) {
		return util.NewAccessDenied(ticket.ShortID())
	}

	if err := s.tickets.Delete(ctx, ticket); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketDeletedPayload{
			Ticket: *ticket.Clone(),
		},
	})
	return nil
}

// Sync answers an actor's synchronization request. The management flag is
// always reported; management additionally receives the full ticket set and
// freshly computed statistics, everyone else their own tickets only.
func (s *TicketService) Sync(ctx context.Context, actor domain.Actor) (*SyncResult, error) {
	manages := s.policy.CanManage(ctx, actor)
	result := &SyncResult{CanManage: manages}

	if manages {
		all, err := s.tickets.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		s.storeSnapshot(all)
		report := s.aggregator.Compute(all)
		result.Tickets = all
		result.Stats = &report
		return result, nil
	}

	own, err := s.tickets.GetBySender(ctx, actor.Name)
	if err != nil {
		return nil, err
	}
	result.Tickets = own
	return result, nil
}

// Snapshot returns the ticket set captured by the most recent management
// sync. It is a last-known view for callers that want one without a store
// round-trip; Sync itself always queries fresh.
func (s *TicketService) Snapshot() []domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

func (s *TicketService) storeSnapshot(tickets []domain.Ticket) {
	cp := make([]domain.Ticket, len(tickets))
	copy(cp, tickets)
	s.mu.Lock()
	s.snapshot = cp
	s.mu.Unlock()
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
