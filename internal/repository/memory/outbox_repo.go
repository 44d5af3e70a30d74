package memory

import (
	"context"
	"time"

	"smartevents/internal/domain"
)

type outboxRepository struct {
	s *Store
}

func NewOutboxRepository(s *Store) domain.OutboxRepository {
	return &outboxRepository{s: s}
}

func (r *outboxRepository) Append(ctx context.Context, topic string, payload []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.outboxSeq++
	now := r.s.now()
	r.s.outbox = append(r.s.outbox, &outboxRow{
		msg: domain.OutboxMessage{
			ID:        r.s.outboxSeq,
			Topic:     topic,
			Payload:   append([]byte(nil), payload...),
			CreatedAt: now,
		},
		nextAttempt: now,
	})
	return nil
}

func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]*domain.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var out []*domain.OutboxMessage
	for _, row := range r.s.outbox {
		if len(out) >= limit {
			break
		}
		if row.sent || row.nextAttempt.After(now) {
			continue
		}
		row.nextAttempt = now.Add(lease)
		m := row.msg
		out = append(out, &m)
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if row := r.find(id); row != nil {
		row.sent = true
	}
	return nil
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id int64, nextAttempt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if row := r.find(id); row != nil {
		row.msg.Attempts++
		row.nextAttempt = nextAttempt
	}
	return nil
}

func (r *outboxRepository) find(id int64) *outboxRow {
	for _, row := range r.s.outbox {
		if row.msg.ID == id {
			return row
		}
	}
	return nil
}

// Pending returns the number of unsent messages.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, row := range s.outbox {
		if !row.sent {
			n++
		}
	}
	return n
}
