package messaging

import (
	"context"
	"log/slog"
	"time"

	"smartevents/internal/domain"
	"smartevents/internal/retry"
)

// DispatcherConfig tunes the outbox dispatcher.
type DispatcherConfig struct {
	Interval       time.Duration
	BatchSize      int
	Lease          time.Duration
	PublishTimeout time.Duration
}

// OutboxDispatcher moves outbox rows to the broker. Delivery is at least once.
type OutboxDispatcher struct {
	outbox    domain.OutboxRepository
	publisher domain.EventPublisher
	cfg       DispatcherConfig
	backoff   *retry.Retrier
	now       func() time.Time
	logger    *slog.Logger
}

func NewOutboxDispatcher(outbox domain.OutboxRepository, publisher domain.EventPublisher, cfg DispatcherConfig, logger *slog.Logger) *OutboxDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &OutboxDispatcher{
		outbox:    outbox,
		publisher: publisher,
		cfg:       cfg,
		backoff:   retry.New(retry.Config{InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 2}),
		now:       time.Now,
		logger:    logger,
	}
}

// Start runs the dispatch loop until ctx is done.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.DispatchOnce(ctx); err != nil {
			d.logger.Error("outbox dispatch failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims one batch and publishes it. It returns the number of
// messages sent.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	msgs, err := d.outbox.Claim(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, msg := range msgs {
		if d.publishOne(ctx, msg) {
			sent++
		}
	}
	return sent, nil
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, msg *domain.OutboxMessage) bool {
	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, msg.Topic, msg.Payload); err != nil {
		next := d.now().Add(d.backoff.Backoff(msg.Attempts))
		d.logger.WarnContext(ctx, "publish event failed", "outbox_id", msg.ID, "topic", msg.Topic, "attempts", msg.Attempts+1, "err", err)
		if err := d.outbox.MarkRetry(ctx, msg.ID, next); err != nil {
			d.logger.ErrorContext(ctx, "schedule outbox retry", "outbox_id", msg.ID, "err", err)
		}
		return false
	}
	if err := d.outbox.MarkSent(ctx, msg.ID); err != nil {
		d.logger.ErrorContext(ctx, "mark outbox sent", "outbox_id", msg.ID, "err", err)
		return false
	}
	return true
}
