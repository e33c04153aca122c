package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/blockhaven/ticketd/internal/access"
	"github.com/blockhaven/ticketd/internal/config"
	"github.com/blockhaven/ticketd/internal/directory"
	"github.com/blockhaven/ticketd/internal/domain"
	"github.com/blockhaven/ticketd/internal/events"
)

// notifyFixture wires a real dispatcher against the in-process directory so
// tests can observe exactly who a fanout reached.
type notifyFixture struct {
	dispatcher events.Dispatcher
	dir        *directory.MemoryDirectory
}

func newNotifyFixture(t *testing.T, operators []string) *notifyFixture {
	t.Helper()
	dir := directory.NewMemoryDirectory(operators)
	policy := access.NewPolicy(config.ModeDedicated, config.PermissionsConfig{}, nil, dir, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	svc := NewNotificationService(dispatcher, dir, dir, policy, zap.NewNop())
	svc.RegisterHandlers()
	return &notifyFixture{dispatcher: dispatcher, dir: dir}
}

func (f *notifyFixture) join(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := f.dir.Join(context.Background(), name); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
}

func (f *notifyFixture) drained(t *testing.T, name string) []directory.Notice {
	t.Helper()
	pending, err := f.dir.Drain(context.Background(), name)
	if err != nil {
		t.Fatalf("drain %s: %v", name, err)
	}
	return pending
}

func threadTicket(id int64, senders ...string) domain.Ticket {
	ticket := domain.Ticket{ID: id, Status: domain.TicketStatusOpen, Sender: senders[0]}
	for _, sender := range senders {
		ticket.Messages = append(ticket.Messages, domain.Message{Sender: sender, Text: "x", SentAt: time.Now()})
	}
	return ticket
}

func TestCreatedNoticeReachesManagementOnly(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, []string{"Admin", "Mod"})
	fix.join(t, "Admin", "Mod", "Steve", "Maria")

	sentAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ticket := threadTicket(1, "Steve")
	err := fix.dispatcher.Publish(ctx, events.Event{
		ID:        "evt-1",
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Steve"},
		Timestamp: sentAt,
		Payload:   events.TicketCreatedPayload{Ticket: ticket},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	for _, name := range []string{"Admin", "Mod"} {
		notices := fix.drained(t, name)
		if len(notices) != 1 {
			t.Fatalf("expected 1 notice for %s, got %d", name, len(notices))
		}
		notice := notices[0]
		if notice.Kind != "ticket_created" || notice.Ticket != "#1" || notice.Actor != "Steve" {
			t.Fatalf("unexpected notice for %s: %+v", name, notice)
		}
		if !notice.SentAt.Equal(sentAt) {
			t.Fatalf("expected event timestamp on notice, got %v", notice.SentAt)
		}
	}
	for _, name := range []string{"Steve", "Maria"} {
		if notices := fix.drained(t, name); len(notices) != 0 {
			t.Fatalf("expected no notice for %s, got %+v", name, notices)
		}
	}
}

func TestCreatedNoticeSkipsManagementCreator(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, []string{"Admin", "Mod"})
	fix.join(t, "Admin", "Mod")

	ticket := threadTicket(2, "Admin")
	err := fix.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "admin"},
		Timestamp: time.Now(),
		Payload:   events.TicketCreatedPayload{Ticket: ticket},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if notices := fix.drained(t, "Admin"); len(notices) != 0 {
		t.Fatalf("expected creator to be skipped, got %+v", notices)
	}
	if notices := fix.drained(t, "Mod"); len(notices) != 1 {
		t.Fatalf("expected other management to be notified, got %d", len(notices))
	}
}

func TestCreatedNoticeOnlySeesConnectedRoster(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, []string{"Admin", "Mod"})
	fix.join(t, "Admin")

	ticket := threadTicket(3, "Steve")
	err := fix.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Steve"},
		Timestamp: time.Now(),
		Payload:   events.TicketCreatedPayload{Ticket: ticket},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if notices := fix.drained(t, "Admin"); len(notices) != 1 {
		t.Fatalf("expected connected management notified, got %d", len(notices))
	}
	// Mod was offline when the event fired
	fix.join(t, "Mod")
	if notices := fix.drained(t, "Mod"); len(notices) != 0 {
		t.Fatalf("expected nothing queued for late joiner, got %+v", notices)
	}
}

func TestMessageNoticeReachesParticipantsExceptAuthor(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, nil)
	fix.join(t, "Steve", "Maria")

	ticket := threadTicket(4, "Steve", "Maria", "Steve")
	err := fix.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Maria"},
		Timestamp: time.Now(),
		Payload: events.TicketMessageAddedPayload{
			Ticket:  ticket,
			Message: domain.Message{Sender: "Maria", Text: "any update?"},
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	notices := fix.drained(t, "Steve")
	if len(notices) != 1 {
		t.Fatalf("expected 1 notice for Steve, got %d", len(notices))
	}
	if notices[0].Kind != "ticket_message_added" || notices[0].Status != "" {
		t.Fatalf("unexpected notice: %+v", notices[0])
	}
	if notices := fix.drained(t, "Maria"); len(notices) != 0 {
		t.Fatalf("expected author skipped, got %+v", notices)
	}
}

func TestStatusNoticeCarriesNewStatus(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, []string{"Admin"})
	fix.join(t, "Steve", "Admin")

	ticket := threadTicket(5, "Steve", "Admin")
	ticket.Status = domain.TicketStatusAnswered
	err := fix.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Admin"},
		Timestamp: time.Now(),
		Payload: events.TicketStatusChangedPayload{
			Ticket:    ticket,
			OldStatus: domain.TicketStatusOpen,
			NewStatus: domain.TicketStatusAnswered,
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	notices := fix.drained(t, "Steve")
	if len(notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(notices))
	}
	if notices[0].Status != string(domain.TicketStatusAnswered) {
		t.Fatalf("expected new status on notice, got %q", notices[0].Status)
	}
}

func TestDeletedNoticeReachesParticipants(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, []string{"Admin"})
	fix.join(t, "Steve", "Admin")

	ticket := threadTicket(6, "Steve", "Admin")
	err := fix.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Admin"},
		Timestamp: time.Now(),
		Payload:   events.TicketDeletedPayload{Ticket: ticket},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if notices := fix.drained(t, "Steve"); len(notices) != 1 || notices[0].Kind != "ticket_deleted" {
		t.Fatalf("expected deletion notice for Steve, got %+v", notices)
	}
	if notices := fix.drained(t, "Admin"); len(notices) != 0 {
		t.Fatalf("expected actor skipped, got %+v", notices)
	}
}

func TestOfflineParticipantSilentlySkipped(t *testing.T) {
	ctx := context.Background()
	fix := newNotifyFixture(t, nil)
	fix.join(t, "Steve")

	ticket := threadTicket(7, "Steve", "Maria")
	err := fix.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Steve"},
		Timestamp: time.Now(),
		Payload: events.TicketMessageAddedPayload{
			Ticket:  ticket,
			Message: domain.Message{Sender: "Steve", Text: "ping"},
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	fix.join(t, "Maria")
	if notices := fix.drained(t, "Maria"); len(notices) != 0 {
		t.Fatalf("expected nothing for participant who was offline, got %+v", notices)
	}
}

// failingSink refuses delivery for one recipient and forwards the rest.
type failingSink struct {
	inner   directory.Sink
	failFor string
}

func (s *failingSink) Deliver(ctx context.Context, recipient string, notice directory.Notice) error {
	if strings.EqualFold(recipient, s.failFor) {
		return errors.New("pipe burst")
	}
	return s.inner.Deliver(ctx, recipient, notice)
}

func TestDeliveryFailureDoesNotStopFanout(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryDirectory(nil)
	policy := access.NewPolicy(config.ModeDedicated, config.PermissionsConfig{}, nil, dir, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())

	svc := NewNotificationService(dispatcher, dir, &failingSink{inner: dir, failFor: "Steve"}, policy, zap.NewNop())
	svc.RegisterHandlers()

	for _, name := range []string{"Steve", "Maria"} {
		if err := dir.Join(ctx, name); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	ticket := threadTicket(8, "Steve", "Maria", "Alex")
	err := dispatcher.Publish(ctx, events.Event{
		Type:      events.EventTicketMessageAdded,
		TicketID:  ticket.ID,
		Actor:     domain.Actor{Name: "Alex"},
		Timestamp: time.Now(),
		Payload: events.TicketMessageAddedPayload{
			Ticket:  ticket,
			Message: domain.Message{Sender: "Alex", Text: "done"},
		},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if notices, _ := dir.Drain(ctx, "Maria"); len(notices) != 1 {
		t.Fatalf("expected Maria notified despite Steve's failure, got %d", len(notices))
	}
}
