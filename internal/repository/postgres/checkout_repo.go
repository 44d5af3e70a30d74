package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smartevents/internal/domain"

	"github.com/lib/pq"
)

type checkoutRepository struct {
	DB *sql.DB
}

func NewCheckoutRepository(db *sql.DB) domain.CheckoutRepository {
	return &checkoutRepository{DB: db}
}

func (r *checkoutRepository) Create(ctx context.Context, c *domain.Checkout) error {
	query := `
		INSERT INTO checkouts (id, user_id, event_id, promo_code, state, base_price, final_price, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.UserID, c.EventID, c.PromoCode, string(c.State), c.BasePrice, c.FinalPrice, c.Currency, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCheckoutExists
		}
		return storageErr("insert checkout", err)
	}
	return nil
}

const checkoutColumns = `id, user_id, event_id, promo_code, discount_id, state, base_price, final_price, currency,
	payment_id, registration_id, ticket_id, failure_reason, created_at, updated_at`

func scanCheckout(s rowScanner) (*domain.Checkout, error) {
	c := &domain.Checkout{}
	var state string
	err := s.Scan(
		&c.ID, &c.UserID, &c.EventID, &c.PromoCode, &c.DiscountID, &state, &c.BasePrice, &c.FinalPrice, &c.Currency,
		&c.PaymentID, &c.RegistrationID, &c.TicketID, &c.FailureReason, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.State = domain.CheckoutState(state)
	return c, nil
}

func (r *checkoutRepository) GetByID(ctx context.Context, id string) (*domain.Checkout, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`
	c, err := scanCheckout(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get checkout", err)
	}
	return c, nil
}

func (r *checkoutRepository) ListStuck(ctx context.Context, states []domain.CheckoutState, olderThan time.Time, limit int) ([]*domain.Checkout, error) {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	query := `SELECT ` + checkoutColumns + ` FROM checkouts
		WHERE state = ANY($1) AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(names), olderThan, limit)
	if err != nil {
		return nil, storageErr("list stuck checkouts", err)
	}
	defer rows.Close()

	var out []*domain.Checkout
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			return nil, storageErr("scan checkout", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list stuck checkouts", err)
	}
	return out, nil
}

func (r *checkoutRepository) Transition(ctx context.Context, id string, from []domain.CheckoutState, to domain.CheckoutState, at time.Time) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	query := `UPDATE checkouts SET state = $2, updated_at = $3 WHERE id = $1 AND state = ANY($4)`
	result, err := r.DB.ExecContext(ctx, query, id, string(to), at, pq.Array(states))
	if err != nil {
		return storageErr("transition checkout", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *checkoutRepository) Update(ctx context.Context, c *domain.Checkout) error {
	query := `
		UPDATE checkouts
		SET discount_id = $2, state = $3, base_price = $4, final_price = $5, currency = $6,
			payment_id = $7, registration_id = $8, ticket_id = $9, failure_reason = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := r.DB.ExecContext(ctx, query,
		c.ID, c.DiscountID, string(c.State), c.BasePrice, c.FinalPrice, c.Currency,
		c.PaymentID, c.RegistrationID, c.TicketID, c.FailureReason, c.UpdatedAt,
	)
	if err != nil {
		return storageErr("update checkout", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
