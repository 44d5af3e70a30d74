package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smartevents/internal/domain"
)

const ticketColumns = `id, payment_id, event_id, attendee_id, price, currency, status, discount_code, created_at, updated_at`

type ticketRepository struct {
	DB *sql.DB
}

func NewTicketRepository(db *sql.DB) domain.TicketRepository {
	return &ticketRepository{DB: db}
}

func scanTicket(s rowScanner) (*domain.Ticket, error) {
	t := &domain.Ticket{}
	var status string
	err := s.Scan(&t.ID, &t.PaymentID, &t.EventID, &t.AttendeeID, &t.Price, &t.Currency, &status, &t.DiscountCode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return t, nil
}

func (r *ticketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	query := `
		INSERT INTO tickets (payment_id, event_id, attendee_id, price, currency, status, discount_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		t.PaymentID, t.EventID, t.AttendeeID, t.Price, t.Currency, string(t.Status), t.DiscountCode, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTicket
		}
		return storageErr("insert ticket", err)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

func (r *ticketRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE payment_id = $1`, paymentID)
}

func (r *ticketRepository) getOne(ctx context.Context, query, arg string) (*domain.Ticket, error) {
	t, err := scanTicket(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get ticket", err)
	}
	return t, nil
}

func (r *ticketRepository) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.Ticket, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE attendee_id = $1 ORDER BY created_at DESC`, attendeeID)
	if err != nil {
		return nil, storageErr("list tickets", err)
	}
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, storageErr("list tickets", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list tickets", err)
	}
	return tickets, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE tickets SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return storageErr("update ticket status", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
