package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"smartevents/internal/domain"
)

var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	codePattern     = regexp.MustCompile(`^[A-Z0-9_-]{2,32}$`)
)

type eventService struct {
	eventRepo      domain.EventRepository
	discountRepo   domain.DiscountCodeRepository
	paymentRepo    domain.PaymentRepository
	contextTimeout time.Duration
	now            func() time.Time
}

// NewEventService returns the organizer-facing EventService.
func NewEventService(eventRepo domain.EventRepository,
	discountRepo domain.DiscountCodeRepository,
	paymentRepo domain.PaymentRepository,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		discountRepo:   discountRepo,
		paymentRepo:    paymentRepo,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, ownerID string, in domain.CreateEventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if ownerID == "" {
		return nil, fmt.Errorf("event owner is required")
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	var errs []string
	if in.Name == "" {
		errs = append(errs, "name is required")
	}
	if in.Capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	if in.BasePrice < 0 {
		errs = append(errs, "base_price must not be negative")
	}
	if !currencyPattern.MatchString(in.Currency) {
		errs = append(errs, "currency must be a 3-letter ISO code")
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		errs = append(errs, "starts_at and ends_at are required")
	} else if !in.EndsAt.After(in.StartsAt) {
		errs = append(errs, "ends_at must be after starts_at")
	}
	if err := domain.NewValidationError(errs...); err != nil {
		return nil, err
	}

	event := domain.NewEvent(ownerID, in.Name, in.Capacity, in.BasePrice, in.Currency, in.StartsAt, in.EndsAt, in.IsVirtual, s.now())
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ownedEvent loads the event and checks that ownerID owns it.
func (s *eventService) ownedEvent(ctx context.Context, ownerID, eventID string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

func (s *eventService) CreateDiscountCode(ctx context.Context, ownerID, eventID string, in domain.CreateDiscountInput) (*domain.DiscountCode, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, ownerID, eventID); err != nil {
		return nil, err
	}

	code := NormalizeCode(in.Code)
	var errs []string
	if !codePattern.MatchString(code) {
		errs = append(errs, "code must be 2-32 letters, digits, '-' or '_'")
	}
	errs = append(errs, domain.ValidateDiscount(in.Type, in.Value)...)
	if in.UsageLimit != nil && *in.UsageLimit < 1 {
		errs = append(errs, "usage_limit must be at least 1")
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && !in.ValidUntil.After(*in.ValidFrom) {
		errs = append(errs, "valid_until must be after valid_from")
	}
	if err := domain.NewValidationError(errs...); err != nil {
		return nil, err
	}

	d := &domain.DiscountCode{
		EventID:    eventID,
		Code:       code,
		Type:       in.Type,
		Value:      in.Value,
		UsageLimit: in.UsageLimit,
		Active:     true,
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
		CreatedBy:  ownerID,
		CreatedAt:  s.now(),
	}
	if err := s.discountRepo.Create(ctx, d); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("create discount code: %w", err)
	}
	return d, nil
}

func (s *eventService) Revenue(ctx context.Context, ownerID, eventID string) (*domain.Revenue, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, ownerID, eventID); err != nil {
		return nil, err
	}
	rev, err := s.paymentRepo.Revenue(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("revenue: %w", err)
	}
	return rev, nil
}

func (s *eventService) ListEventPayments(ctx context.Context, ownerID, eventID string, p domain.PaginationParams) ([]*domain.Payment, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, ownerID, eventID); err != nil {
		return nil, 0, err
	}
	payments, total, err := s.paymentRepo.ListByEvent(ctx, eventID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return payments, total, nil
}
