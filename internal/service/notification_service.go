package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/access"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/internal/domain"
	"github.com/blockhaven/ticketd/internal/events"
)

// NotificationService fans ticket events out to in-game recipients. Delivery
// is best-effort and per-recipient independent: the sink skips anyone not
// currently connected, and delivery failures are logged and swallowed. A
// finished mutation is never rolled back or retried over a lost notice.
type NotificationService struct {
	dispatcher events.Dispatcher
	dir        directory.Directory
	sink       directory.Sink
	policy     *access.Policy
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, dir directory.Directory, sink directory.Sink, policy *access.Policy, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		dir:        dir,
		sink:       sink,
		policy:     policy,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketMessageAdded, n.handleTicketMessageAdded)
	n.dispatcher.Subscribe(events.EventTicketDeleted, n.handleTicketDeleted)
}

// handleTicketCreated alerts connected management-capable identities, minus
// the creator, that a new ticket arrived.
func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ticket created", zap.Int64("ticket_id", event.TicketID), zap.String("sender", payload.Ticket.Sender))

	notice := directory.Notice{
		Kind:   string(event.Type),
		Ticket: payload.Ticket.ShortID(),
		Actor:  event.Actor.Name,
		SentAt: event.Timestamp,
	}
	for _, name := range n.managementRecipients(ctx, event.Actor.Name) {
		n.deliver(ctx, name, notice)
	}
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ticket status changed",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)))

	notice := directory.Notice{
		Kind:   string(event.Type),
		Ticket: payload.Ticket.ShortID(),
		Actor:  event.Actor.Name,
		Status: string(payload.NewStatus),
		SentAt: event.Timestamp,
	}
	for _, name := range participantRecipients(&payload.Ticket, event.Actor.Name) {
		n.deliver(ctx, name, notice)
	}
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketMessageAddedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ticket message added", zap.Int64("ticket_id", event.TicketID), zap.String("author", payload.Message.Sender))

	notice := directory.Notice{
		Kind:   string(event.Type),
		Ticket: payload.Ticket.ShortID(),
		Actor:  event.Actor.Name,
		SentAt: event.Timestamp,
	}
	for _, name := range participantRecipients(&payload.Ticket, event.Actor.Name) {
		n.deliver(ctx, name, notice)
	}
	return nil
}

func (n *NotificationService) handleTicketDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketDeletedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ticket deleted", zap.Int64("ticket_id", event.TicketID), zap.String("actor", event.Actor.Name))

	notice := directory.Notice{
		Kind:   string(event.Type),
		Ticket: payload.Ticket.ShortID(),
		Actor:  event.Actor.Name,
		SentAt: event.Timestamp,
	}
	for _, name := range participantRecipients(&payload.Ticket, event.Actor.Name) {
		n.deliver(ctx, name, notice)
	}
	return nil
}

// managementRecipients walks the connected roster and keeps the identities
// with management access, excluding the ticket creator. The management check
// runs fresh per name; permission state may have changed since any earlier
// decision.
func (n *NotificationService) managementRecipients(ctx context.Context, creator string) []string {
	names, err := n.dir.Connected(ctx)
	if err != nil {
		n.logger.Warn("connected roster lookup failed", zap.Error(err))
		return nil
	}

	recipients := make([]string, 0, len(names))
	for _, name := range names {
		if strings.EqualFold(name, creator) {
			continue
		}
		if !n.policy.CanManage(ctx, domain.Actor{Name: name}) {
			continue
		}
		recipients = append(recipients, name)
	}
	return recipients
}

// participantRecipients is everyone who wrote in the thread except the actor
// who caused the event.
func participantRecipients(ticket *domain.Ticket, exclude string) []string {
	participants := ticket.Participants()
	recipients := make([]string, 0, len(participants))
	for _, name := range participants {
		if strings.EqualFold(name, exclude) {
			continue
		}
		recipients = append(recipients, name)
	}
	return recipients
}

func (n *NotificationService) deliver(ctx context.Context, recipient string, notice directory.Notice) {
	if err := n.sink.Deliver(ctx, recipient, notice); err != nil {
		n.logger.Debug("notice delivery skipped",
			zap.String("recipient", recipient),
			zap.String("kind", notice.Kind),
			zap.Error(err))
	}
}
