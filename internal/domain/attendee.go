package domain

import (
	"context"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// EventRegistration represents an attendee's registration for an event.
// At most one non-cancelled registration exists per (event, user).
// swagger:model EventRegistration
type EventRegistration struct {
	ID        string             `json:"id"`
	EventID   string             `json:"event_id"`
	UserID    string             `json:"user_id"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewEventRegistration creates a new confirmed EventRegistration. ID is typically set by the repository on create.
func NewEventRegistration(eventID, userID string, createdAt, updatedAt time.Time) *EventRegistration {
	return &EventRegistration{
		EventID:   eventID,
		UserID:    userID,
		Status:    RegistrationConfirmed,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// EventRegistrationRepository defines storage operations for event registrations.
type EventRegistrationRepository interface {
	// Register atomically checks capacity and inserts reg. If a non-cancelled
	// registration already exists it is returned with created=false. It
	// returns ErrEventFull when confirmed registrations reach capacity and
	// ErrNotFound when the event does not exist.
	Register(ctx context.Context, reg *EventRegistration) (existing *EventRegistration, created bool, err error)
	GetActive(ctx context.Context, eventID, userID string) (*EventRegistration, error)
	// Cancel moves the active registration to cancelled. ErrNotRegistered if none.
	Cancel(ctx context.Context, eventID, userID string, at time.Time) error
	CountConfirmed(ctx context.Context, eventID string) (int, error)
}

// Availability is the advisory remaining capacity of an event.
// swagger:model Availability
type Availability struct {
	EventID           string `json:"event_id"`
	Capacity          int    `json:"capacity"`
	RemainingCapacity int    `json:"remaining_capacity"`
}

// RegistrationLedger is the source of truth for who is registered where.
type RegistrationLedger interface {
	// Register returns (reg, created, err): created is false when the pair was already registered.
	Register(ctx context.Context, userID, eventID string) (*EventRegistration, bool, error)
	Unregister(ctx context.Context, userID, eventID string) error
	Availability(ctx context.Context, eventID string) (*Availability, error)
	GetActive(ctx context.Context, userID, eventID string) (*EventRegistration, error)
}
