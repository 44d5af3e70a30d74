package domain

import (
	"context"
	"time"
)

// Routing keys of the domain events written to the outbox.
const (
	TopicCheckoutCompleted     = "checkout.completed"
	TopicPaymentRefunded       = "payment.refunded"
	TopicRegistrationCancelled = "registration.cancelled"
)

// OutboxMessage is a domain event waiting to be published.
type OutboxMessage struct {
	ID        int64
	Topic     string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// OutboxRepository stores domain events until they are published.
type OutboxRepository interface {
	Append(ctx context.Context, topic string, payload []byte) error
	// Claim returns up to limit due messages and hides them from other
	// claimers until lease expires.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]*OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	MarkRetry(ctx context.Context, id int64, nextAttempt time.Time) error
}

// EventPublisher sends a domain event to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// CheckoutCompletedEvent is the payload of TopicCheckoutCompleted.
type CheckoutCompletedEvent struct {
	CheckoutID   string    `json:"checkout_id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	PaymentID    string    `json:"payment_id"`
	TicketID     string    `json:"ticket_id"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	DiscountCode string    `json:"discount_code,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// PaymentRefundedEvent is the payload of TopicPaymentRefunded.
type PaymentRefundedEvent struct {
	PaymentID  string    `json:"payment_id"`
	CheckoutID string    `json:"checkout_id"`
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RegistrationCancelledEvent is the payload of TopicRegistrationCancelled.
type RegistrationCancelledEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
