package domain

import (
	"context"
	"time"
)

// Event is a ticketed event owned by an organizer.
// swagger:model Event
type Event struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	BasePrice int64     `json:"base_price"`
	Currency  string    `json:"currency"`
	IsVirtual bool      `json:"is_virtual"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(ownerID, name string, capacity int, basePrice int64, currency string, startsAt, endsAt time.Time, isVirtual bool, now time.Time) *Event {
	return &Event{
		OwnerID:   ownerID,
		Name:      name,
		Capacity:  capacity,
		BasePrice: basePrice,
		Currency:  currency,
		IsVirtual: isVirtual,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
}

// Revenue summarizes completed payments for an event.
// swagger:model Revenue
type Revenue struct {
	EventID           string           `json:"event_id"`
	CompletedPayments int              `json:"completed_payments"`
	RefundedPayments  int              `json:"refunded_payments"`
	ByCurrency        map[string]int64 `json:"revenue_by_currency"`
}

// CreateEventInput carries organizer input for a new event.
type CreateEventInput struct {
	Name      string
	Capacity  int
	BasePrice int64
	Currency  string
	IsVirtual bool
	StartsAt  time.Time
	EndsAt    time.Time
}

// EventService defines organizer-facing operations.
type EventService interface {
	CreateEvent(ctx context.Context, ownerID string, in CreateEventInput) (*Event, error)
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	CreateDiscountCode(ctx context.Context, ownerID, eventID string, in CreateDiscountInput) (*DiscountCode, error)
	Revenue(ctx context.Context, ownerID, eventID string) (*Revenue, error)
	ListEventPayments(ctx context.Context, ownerID, eventID string, p PaginationParams) ([]*Payment, int, error)
}
