package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blockhaven/ticketd/internal/domain"
)

// ErrNotFound reports a lookup for a ticket id the store does not hold.
// Callers treat it as the empty result, not a failure: stale references are
// routine when several sessions act on the same corpus.
var ErrNotFound = errors.New("ticket not found")

// TicketRepository encapsulates ticket persistence. Implementations assign
// ids on Create and persist whole records on Update; a record-level write is
// atomic, so concurrent mutations of the same id settle last-write-wins while
// different ids never contend.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetAll(ctx context.Context) ([]domain.Ticket, error)
	GetBySender(ctx context.Context, sender string) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository returns the Postgres-backed implementation used by
// dedicated deployments.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	blob, err := encodeMessages(ticket.Messages)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (status, sender, server, reason, messages)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Status,
		ticket.Sender,
		ticket.Server,
		ticket.Reason,
		blob,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	blob, err := encodeMessages(ticket.Messages)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET status=$1, messages=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, ticket.Status, blob, ticket.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, ticket *domain.Ticket) error {
	const query = `DELETE FROM tickets WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, ticket.ID)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `
        SELECT id, status, sender, server, reason, messages, created_at, updated_at
        FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) GetAll(ctx context.Context) ([]domain.Ticket, error) {
	const query = `
        SELECT id, status, sender, server, reason, messages, created_at, updated_at
        FROM tickets ORDER BY id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) GetBySender(ctx context.Context, sender string) ([]domain.Ticket, error) {
	const query = `
        SELECT id, status, sender, server, reason, messages, created_at, updated_at
        FROM tickets WHERE LOWER(sender)=LOWER($1) ORDER BY id`
	rows, err := r.pool.Query(ctx, query, sender)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		blob   []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Status,
		&ticket.Sender,
		&ticket.Server,
		&ticket.Reason,
		&blob,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	messages, err := decodeMessages(blob)
	if err != nil {
		return nil, err
	}
	ticket.Messages = messages
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
