package postgres

import (
	"context"
	"database/sql"
	"time"

	"smartevents/internal/domain"
)

type outboxRepository struct {
	DB *sql.DB
}

func NewOutboxRepository(db *sql.DB) domain.OutboxRepository {
	return &outboxRepository{DB: db}
}

func (r *outboxRepository) Append(ctx context.Context, topic string, payload []byte) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2)`, topic, payload)
	if err != nil {
		return storageErr("append outbox", err)
	}
	return nil
}

// Claim locks due rows with SKIP LOCKED and pushes their next_attempt_at
// past the lease so a concurrent dispatcher skips them.
func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]*domain.OutboxMessage, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin outbox claim", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, topic, payload, attempts, created_at
		FROM outbox
		WHERE status = 'pending' AND next_attempt_at <= NOW()
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, storageErr("query outbox", err)
	}
	var msgs []*domain.OutboxMessage
	for rows.Next() {
		m := &domain.OutboxMessage{}
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, storageErr("scan outbox", err)
		}
		msgs = append(msgs, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan outbox", err)
	}

	releaseAt := time.Now().Add(lease)
	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `UPDATE outbox SET next_attempt_at = $2, updated_at = NOW() WHERE id = $1`, m.ID, releaseAt); err != nil {
			return nil, storageErr("lease outbox", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit outbox claim", err)
	}
	return msgs, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE outbox SET status = 'sent', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return storageErr("mark outbox sent", err)
	}
	return nil
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id int64, nextAttempt time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE outbox SET attempts = attempts + 1, next_attempt_at = $2, updated_at = NOW() WHERE id = $1
	`, id, nextAttempt)
	if err != nil {
		return storageErr("mark outbox retry", err)
	}
	return nil
}
