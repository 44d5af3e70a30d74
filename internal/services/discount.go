package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartevents/internal/domain"
)

type discountResolver struct {
	eventRepo    domain.EventRepository
	discountRepo domain.DiscountCodeRepository
	now          func() time.Time
}

// NewDiscountResolver returns a DiscountResolver backed by the given repositories.
func NewDiscountResolver(eventRepo domain.EventRepository, discountRepo domain.DiscountCodeRepository) domain.DiscountResolver {
	return &discountResolver{eventRepo: eventRepo, discountRepo: discountRepo, now: time.Now}
}

// NormalizeCode trims and upper-cases a promo code. Codes are matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve prices the event with code applied. Unknown, inactive, exhausted
// and out-of-window codes all yield ErrInvalidCode.
func (r *discountResolver) Resolve(ctx context.Context, eventID, code string) (*domain.DiscountResolution, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, domain.NewValidationError("promo_code is empty")
	}
	event, err := r.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	d, err := r.discountRepo.GetByEventAndCode(ctx, eventID, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, fmt.Errorf("get discount code: %w", err)
	}
	if !d.UsableAt(r.now()) {
		return nil, domain.ErrInvalidCode
	}
	return &domain.DiscountResolution{
		Discount:   d,
		BasePrice:  event.BasePrice,
		FinalPrice: d.Apply(event.BasePrice),
	}, nil
}

// Redeem consumes one use of discount for checkoutID. It returns
// ErrInvalidCode when the last use was taken by a concurrent checkout.
// Repeating it for the same checkout is a no-op.
func (r *discountResolver) Redeem(ctx context.Context, discount *domain.DiscountCode, checkoutID string) error {
	if discount == nil || discount.ID == "" {
		return nil
	}
	if err := r.discountRepo.Redeem(ctx, discount.ID, checkoutID); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			return domain.ErrInvalidCode
		}
		return fmt.Errorf("redeem discount code: %w", err)
	}
	return nil
}
