package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/blockhaven/ticketd/internal/domain"
)

type sqliteTicketRepository struct {
	db *sql.DB
}

// NewSQLiteTicketRepository returns the SQLite-backed implementation used by
// standalone deployments. The schema is created on first use.
func NewSQLiteTicketRepository(db *sql.DB) (TicketRepository, error) {
	if err := initSQLiteSchema(db); err != nil {
		return nil, err
	}
	return &sqliteTicketRepository{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS tickets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  status TEXT NOT NULL,
  sender TEXT NOT NULL,
  server TEXT NOT NULL,
  reason TEXT NOT NULL,
  messages BLOB NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_sender ON tickets(sender COLLATE NOCASE);
`)
	return err
}

func (r *sqliteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	blob, err := encodeMessages(ticket.Messages)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tickets(status, sender, server, reason, messages, created_at, updated_at)
         VALUES(?,?,?,?,?,?,?)`,
		ticket.Status, ticket.Sender, ticket.Server, ticket.Reason, blob,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ticket.ID = id
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	return nil
}

func (r *sqliteTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	blob, err := encodeMessages(ticket.Messages)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status=?, messages=?, updated_at=? WHERE id=?`,
		ticket.Status, blob, now.Format(time.RFC3339Nano), ticket.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	ticket.UpdatedAt = now
	return nil
}

func (r *sqliteTicketRepository) Delete(ctx context.Context, ticket *domain.Ticket) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=?`, ticket.ID)
	return err
}

func (r *sqliteTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, status, sender, server, reason, messages, created_at, updated_at
         FROM tickets WHERE id=?`, id)
	ticket, err := scanSQLiteTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *sqliteTicketRepository) GetAll(ctx context.Context) ([]domain.Ticket, error) {
	return r.list(ctx,
		`SELECT id, status, sender, server, reason, messages, created_at, updated_at
         FROM tickets ORDER BY id`)
}

func (r *sqliteTicketRepository) GetBySender(ctx context.Context, sender string) ([]domain.Ticket, error) {
	return r.list(ctx,
		`SELECT id, status, sender, server, reason, messages, created_at, updated_at
         FROM tickets WHERE sender=? COLLATE NOCASE ORDER BY id`, sender)
}

func (r *sqliteTicketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ticket)
	}
	return out, rows.Err()
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket  domain.Ticket
		blob    []byte
		created string
		updated string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Status,
		&ticket.Sender,
		&ticket.Server,
		&ticket.Reason,
		&blob,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}
	messages, err := decodeMessages(blob)
	if err != nil {
		return nil, err
	}
	ticket.Messages = messages
	ticket.CreatedAt = parseStoredTime(created)
	ticket.UpdatedAt = parseStoredTime(updated)
	return &ticket, nil
}

func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
