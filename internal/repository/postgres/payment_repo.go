package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smartevents/internal/domain"
)

const paymentColumns = `id, checkout_id, user_id, event_id, amount, currency, status, method, gateway, gateway_ref,
		discount_code, billing_name, billing_email, last_four, failure_reason, created_at, updated_at`

type paymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(db *sql.DB) domain.PaymentRepository {
	return &paymentRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(s rowScanner) (*domain.Payment, error) {
	p := &domain.Payment{}
	var status string
	err := s.Scan(
		&p.ID, &p.CheckoutID, &p.UserID, &p.EventID, &p.Amount, &p.Currency, &status, &p.Method, &p.Gateway, &p.GatewayRef,
		&p.DiscountCode, &p.BillingName, &p.BillingEmail, &p.LastFour, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = domain.PaymentStatus(status)
	return p, nil
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (checkout_id, user_id, event_id, amount, currency, status, method, gateway, gateway_ref,
			discount_code, billing_name, billing_email, last_four, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		p.CheckoutID, p.UserID, p.EventID, p.Amount, p.Currency, string(p.Status), p.Method, p.Gateway, p.GatewayRef,
		p.DiscountCode, p.BillingName, p.BillingEmail, p.LastFour, p.FailureReason, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return storageErr("insert payment", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get payment", err)
	}
	return p, nil
}

// UpdateStatus is conditioned on the current status so that concurrent
// finalizers cannot overwrite each other.
func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus, gatewayRef, reason string, at time.Time) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	query := `
		UPDATE payments
		SET status = $3,
			gateway_ref = CASE WHEN $4 = '' THEN gateway_ref ELSE $4 END,
			failure_reason = $5,
			updated_at = $6
		WHERE id = $1 AND status = $2
	`
	result, err := r.DB.ExecContext(ctx, query, id, string(from), string(to), gatewayRef, reason, at)
	if err != nil {
		return storageErr("update payment status", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, "list user payments", query, userID)
}

func (r *paymentRepository) ListByEvent(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Payment, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, storageErr("count event payments", err)
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE event_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	payments, err := r.list(ctx, "list event payments", query, eventID, params.PageSize, params.Offset())
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *paymentRepository) ListOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p
		WHERE p.status = 'completed' AND p.created_at < $1
		AND NOT EXISTS (SELECT 1 FROM tickets t WHERE t.payment_id = p.id AND t.status <> 'void')
		ORDER BY p.created_at
		LIMIT $2`
	return r.list(ctx, "list orphaned payments", query, olderThan, limit)
}

func (r *paymentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`
	return r.list(ctx, "list stale payments", query, olderThan, limit)
}

func (r *paymentRepository) Revenue(ctx context.Context, eventID string) (*domain.Revenue, error) {
	query := `
		SELECT currency, status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE event_id = $1 AND status IN ('completed', 'refunded')
		GROUP BY currency, status
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, storageErr("payment revenue", err)
	}
	defer rows.Close()

	rev := &domain.Revenue{EventID: eventID, ByCurrency: map[string]int64{}}
	for rows.Next() {
		var currency, status string
		var count int
		var sum int64
		if err := rows.Scan(&currency, &status, &count, &sum); err != nil {
			return nil, storageErr("payment revenue", err)
		}
		switch domain.PaymentStatus(status) {
		case domain.PaymentCompleted:
			rev.CompletedPayments += count
			rev.ByCurrency[currency] += sum
		case domain.PaymentRefunded:
			rev.RefundedPayments += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("payment revenue", err)
	}
	return rev, nil
}

func (r *paymentRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	payments := make([]*domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return payments, nil
}
