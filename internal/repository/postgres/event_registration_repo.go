package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"smartevents/internal/domain"
)

type eventRegistrationRepository struct {
	DB *sql.DB
}

func NewEventRegistrationRepository(db *sql.DB) domain.EventRegistrationRepository {
	return &eventRegistrationRepository{
		DB: db,
	}
}

// Register locks the event row so that the capacity check and the insert
// are serialized against every other registrant of the same event.
func (r *eventRegistrationRepository) Register(ctx context.Context, reg *domain.EventRegistration) (*domain.EventRegistration, bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, storageErr("begin registration tx", err)
	}
	defer tx.Rollback()

	var capacity int
	err = tx.QueryRowContext(ctx, `SELECT capacity FROM events WHERE id = $1 FOR UPDATE`, reg.EventID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, storageErr("lock event row", err)
	}

	existing := &domain.EventRegistration{}
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT id, event_id, user_id, status, created_at, updated_at
		FROM event_registrations
		WHERE event_id = $1 AND user_id = $2 AND status <> 'cancelled'
	`, reg.EventID, reg.UserID).Scan(&existing.ID, &existing.EventID, &existing.UserID, &status, &existing.CreatedAt, &existing.UpdatedAt)
	switch {
	case err == nil:
		existing.Status = domain.RegistrationStatus(status)
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, storageErr("check existing registration", err)
	}

	var confirmed int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND status = 'confirmed'
	`, reg.EventID).Scan(&confirmed)
	if err != nil {
		return nil, false, storageErr("count registrations", err)
	}
	if confirmed >= capacity {
		return nil, false, domain.ErrEventFull
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO event_registrations (event_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, reg.EventID, reg.UserID, string(reg.Status), reg.CreatedAt, reg.UpdatedAt).Scan(&reg.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, domain.ErrAlreadyRegistered
		}
		return nil, false, storageErr("insert registration", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, storageErr("commit registration", err)
	}
	return reg, true, nil
}

func (r *eventRegistrationRepository) GetActive(ctx context.Context, eventID, userID string) (*domain.EventRegistration, error) {
	query := `
		SELECT id, event_id, user_id, status, created_at, updated_at
		FROM event_registrations
		WHERE event_id = $1 AND user_id = $2 AND status <> 'cancelled'
	`
	reg := &domain.EventRegistration{}
	var status string
	err := r.DB.QueryRowContext(ctx, query, eventID, userID).
		Scan(&reg.ID, &reg.EventID, &reg.UserID, &status, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get registration", err)
	}
	reg.Status = domain.RegistrationStatus(status)
	return reg, nil
}

func (r *eventRegistrationRepository) Cancel(ctx context.Context, eventID, userID string, at time.Time) error {
	query := `
		UPDATE event_registrations
		SET status = 'cancelled', updated_at = $3
		WHERE event_id = $1 AND user_id = $2 AND status <> 'cancelled'
	`
	result, err := r.DB.ExecContext(ctx, query, eventID, userID, at)
	if err != nil {
		return storageErr("cancel registration", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotRegistered
	}
	return nil
}

func (r *eventRegistrationRepository) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND status = 'confirmed'
	`, eventID).Scan(&n)
	if err != nil {
		return 0, storageErr("count registrations", err)
	}
	return n, nil
}
