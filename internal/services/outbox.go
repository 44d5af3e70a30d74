package services

import (
	"context"
	"encoding/json"
	"log/slog"

	"smartevents/internal/domain"
)

// emit appends a domain event to the outbox. Failures are logged, not returned:
// the state change the event describes has already been committed.
func emit(ctx context.Context, outbox domain.OutboxRepository, logger *slog.Logger, topic string, event any) {
	if outbox == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.ErrorContext(ctx, "marshal domain event", "topic", topic, "err", err)
		return
	}
	if err := outbox.Append(ctx, topic, payload); err != nil {
		logger.ErrorContext(ctx, "append domain event", "topic", topic, "err", err)
	}
}
