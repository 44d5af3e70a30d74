package domain

import (
	"context"
	"math"
	"time"
)

// DiscountType is how a discount code reduces the base price.
type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// DiscountCode is a promotional code scoped to one event.
// For percentage codes Value is a percent in [0, 100] with at most two
// decimals; for fixed_amount codes Value is in minor units.
// swagger:model DiscountCode
type DiscountCode struct {
	ID         string       `json:"id"`
	EventID    string       `json:"event_id"`
	Code       string       `json:"code"`
	Type       DiscountType `json:"discount_type"`
	Value      float64      `json:"discount_value"`
	UsageCount int          `json:"usage_count"`
	UsageLimit *int         `json:"usage_limit,omitempty"`
	Active     bool         `json:"active"`
	ValidFrom  *time.Time   `json:"valid_from,omitempty"`
	ValidUntil *time.Time   `json:"valid_until,omitempty"`
	CreatedBy  string       `json:"created_by"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Exhausted reports whether the usage limit has been reached.
func (d *DiscountCode) Exhausted() bool {
	return d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit
}

// UsableAt reports whether the code can be applied at t. usage_limit is
// checked here for early rejection; the authoritative check is the
// conditional increment at redemption.
func (d *DiscountCode) UsableAt(t time.Time) bool {
	if !d.Active || d.Exhausted() {
		return false
	}
	if d.ValidFrom != nil && t.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && t.After(*d.ValidUntil) {
		return false
	}
	return true
}

// Apply returns the discounted price for basePrice in minor units.
// Percentage results are rounded half-up to the minor unit; both types floor at zero.
func (d *DiscountCode) Apply(basePrice int64) int64 {
	if basePrice <= 0 {
		return 0
	}
	switch d.Type {
	case DiscountPercentage:
		bp := int64(math.Round(d.Value * 100))
		if bp >= 10000 {
			return 0
		}
		if bp < 0 {
			bp = 0
		}
		return (basePrice*(10000-bp) + 5000) / 10000
	case DiscountFixedAmount:
		off := int64(math.Round(d.Value))
		if off >= basePrice {
			return 0
		}
		return basePrice - off
	}
	return basePrice
}

// ValidateDiscount checks the type/value combination of a new code.
func ValidateDiscount(t DiscountType, value float64) []string {
	switch t {
	case DiscountPercentage:
		if value < 0 || value > 100 {
			return []string{"discount_value must be between 0 and 100 for percentage codes"}
		}
		if math.Abs(value*100-math.Round(value*100)) > 1e-9 {
			return []string{"discount_value supports at most two decimals"}
		}
	case DiscountFixedAmount:
		if value < 0 {
			return []string{"discount_value must not be negative"}
		}
		if value != math.Trunc(value) {
			return []string{"discount_value must be a whole number of minor units for fixed_amount codes"}
		}
	default:
		return []string{"discount_type must be percentage or fixed_amount"}
	}
	return nil
}

// DiscountResolution is the outcome of resolving a code against an event.
// swagger:model DiscountResolution
type DiscountResolution struct {
	Discount   *DiscountCode `json:"discount"`
	BasePrice  int64         `json:"base_price"`
	FinalPrice int64         `json:"final_price"`
}

// CreateDiscountInput carries organizer input for a new code.
type CreateDiscountInput struct {
	Code       string
	Type       DiscountType
	Value      float64
	UsageLimit *int
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// DiscountCodeRepository defines storage operations for discount codes.
type DiscountCodeRepository interface {
	Create(ctx context.Context, d *DiscountCode) error
	GetByEventAndCode(ctx context.Context, eventID, code string) (*DiscountCode, error)
	// Redeem consumes one use on behalf of checkoutID: usage_count is
	// incremented only while the code is active and below its limit, and
	// ErrInvalidCode is returned when that does not hold. A checkout that
	// already redeemed the code gets nil without a second increment.
	Redeem(ctx context.Context, id, checkoutID string) error
}

// DiscountResolver validates promo codes and prices them.
type DiscountResolver interface {
	Resolve(ctx context.Context, eventID, code string) (*DiscountResolution, error)
	Redeem(ctx context.Context, discount *DiscountCode, checkoutID string) error
}
