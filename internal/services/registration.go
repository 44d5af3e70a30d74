package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smartevents/internal/domain"
)

type registrationLedger struct {
	eventRepo        domain.EventRepository
	registrationRepo domain.EventRegistrationRepository
	outbox           domain.OutboxRepository
	now              func() time.Time
	logger           *slog.Logger
}

// NewRegistrationLedger creates a RegistrationLedger with the given repositories.
func NewRegistrationLedger(
	eventRepo domain.EventRepository,
	registrationRepo domain.EventRegistrationRepository,
	outbox domain.OutboxRepository,
	logger *slog.Logger,
) domain.RegistrationLedger {
	return &registrationLedger{
		eventRepo:        eventRepo,
		registrationRepo: registrationRepo,
		outbox:           outbox,
		now:              time.Now,
		logger:           logger,
	}
}

func (l *registrationLedger) Register(ctx context.Context, userID, eventID string) (*domain.EventRegistration, bool, error) {
	now := l.now()
	reg := domain.NewEventRegistration(eventID, userID, now, now)
	existing, created, err := l.registrationRepo.Register(ctx, reg)
	if err != nil {
		if errors.Is(err, domain.ErrEventFull) || errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("register: %w", err)
	}
	if !created {
		return existing, false, nil
	}
	return reg, true, nil
}

// Unregister cancels the registration. The attendee's ticket is left as is.
func (l *registrationLedger) Unregister(ctx context.Context, userID, eventID string) error {
	now := l.now()
	if err := l.registrationRepo.Cancel(ctx, eventID, userID, now); err != nil {
		if errors.Is(err, domain.ErrNotRegistered) {
			return domain.ErrNotRegistered
		}
		return fmt.Errorf("cancel registration: %w", err)
	}
	l.logger.InfoContext(ctx, "registration cancelled", "event_id", eventID, "user_id", userID)
	emit(ctx, l.outbox, l.logger, domain.TopicRegistrationCancelled, domain.RegistrationCancelledEvent{
		EventID:    eventID,
		UserID:     userID,
		OccurredAt: now,
	})
	return nil
}

// Availability is advisory; it does not reserve a seat.
func (l *registrationLedger) Availability(ctx context.Context, eventID string) (*domain.Availability, error) {
	event, err := l.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	count, err := l.registrationRepo.CountConfirmed(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return &domain.Availability{
		EventID:           eventID,
		Capacity:          event.Capacity,
		RemainingCapacity: max(0, event.Capacity-count),
	}, nil
}

func (l *registrationLedger) GetActive(ctx context.Context, userID, eventID string) (*domain.EventRegistration, error) {
	reg, err := l.registrationRepo.GetActive(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}
