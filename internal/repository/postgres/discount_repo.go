package postgres

import (
	"context"
	"database/sql"
	"errors"

	"smartevents/internal/domain"
)

type discountCodeRepository struct {
	DB *sql.DB
}

func NewDiscountCodeRepository(db *sql.DB) domain.DiscountCodeRepository {
	return &discountCodeRepository{DB: db}
}

func (r *discountCodeRepository) Create(ctx context.Context, d *domain.DiscountCode) error {
	query := `
		INSERT INTO discount_codes (event_id, code, discount_type, discount_value, usage_count, usage_limit, active, valid_from, valid_until, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		d.EventID, d.Code, string(d.Type), d.Value, d.UsageCount, nullInt(d.UsageLimit), d.Active,
		nullTime(d.ValidFrom), nullTime(d.ValidUntil), d.CreatedBy, d.CreatedAt,
	).Scan(&d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewValidationError("code already exists for this event")
		}
		return storageErr("insert discount code", err)
	}
	return nil
}

func (r *discountCodeRepository) GetByEventAndCode(ctx context.Context, eventID, code string) (*domain.DiscountCode, error) {
	query := `
		SELECT id, event_id, code, discount_type, discount_value, usage_count, usage_limit, active, valid_from, valid_until, created_by, created_at
		FROM discount_codes
		WHERE event_id = $1 AND code = $2
	`
	d := &domain.DiscountCode{}
	var dtype string
	var limit sql.NullInt64
	var from, until sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, eventID, code).Scan(
		&d.ID, &d.EventID, &d.Code, &dtype, &d.Value, &d.UsageCount, &limit, &d.Active,
		&from, &until, &d.CreatedBy, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get discount code", err)
	}
	d.Type = domain.DiscountType(dtype)
	if limit.Valid {
		l := int(limit.Int64)
		d.UsageLimit = &l
	}
	if from.Valid {
		d.ValidFrom = &from.Time
	}
	if until.Valid {
		d.ValidUntil = &until.Time
	}
	return d, nil
}

// Redeem records the redemption and increments usage_count in one
// transaction. The conditional UPDATE keeps concurrent redemptions of the
// last use from both succeeding; the unique checkout_id makes a repeat a no-op.
func (r *discountCodeRepository) Redeem(ctx context.Context, id, checkoutID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin redemption tx", err)
	}
	defer tx.Rollback()

	claimed, err := tx.ExecContext(ctx, `
		INSERT INTO discount_redemptions (discount_id, checkout_id)
		VALUES ($1, $2)
		ON CONFLICT (checkout_id) DO NOTHING
	`, id, checkoutID)
	if err != nil {
		return storageErr("record redemption", err)
	}
	n, err := claimed.RowsAffected()
	if err != nil {
		return storageErr("record redemption", err)
	}
	if n == 0 {
		return nil
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE discount_codes
		SET usage_count = usage_count + 1
		WHERE id = $1 AND active AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, id)
	if err != nil {
		return storageErr("redeem discount code", err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return storageErr("redeem discount code", err)
	}
	if n == 0 {
		return domain.ErrInvalidCode
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit redemption", err)
	}
	return nil
}
