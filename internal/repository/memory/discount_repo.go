package memory

import (
	"context"

	"smartevents/internal/domain"
)

type discountCodeRepository struct {
	s *Store
}

func NewDiscountCodeRepository(s *Store) domain.DiscountCodeRepository {
	return &discountCodeRepository{s: s}
}

func (r *discountCodeRepository) Create(ctx context.Context, d *domain.DiscountCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := discountKey(d.EventID, d.Code)
	if _, exists := r.s.discountByKey[key]; exists {
		return domain.NewValidationError("code already exists for this event")
	}
	if d.ID == "" {
		d.ID = newID()
	}
	r.s.discounts[d.ID] = copyDiscount(d)
	r.s.discountByKey[key] = d.ID
	return nil
}

func (r *discountCodeRepository) GetByEventAndCode(ctx context.Context, eventID, code string) (*domain.DiscountCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.discountByKey[discountKey(eventID, code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDiscount(r.s.discounts[id]), nil
}

func (r *discountCodeRepository) Redeem(ctx context.Context, id, checkoutID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, done := r.s.redemptions[checkoutID]; done {
		return nil
	}
	d, ok := r.s.discounts[id]
	if !ok || !d.Active || d.Exhausted() {
		return domain.ErrInvalidCode
	}
	d.UsageCount++
	r.s.redemptions[checkoutID] = id
	return nil
}

func copyDiscount(d *domain.DiscountCode) *domain.DiscountCode {
	cp := *d
	if d.UsageLimit != nil {
		l := *d.UsageLimit
		cp.UsageLimit = &l
	}
	if d.ValidFrom != nil {
		t := *d.ValidFrom
		cp.ValidFrom = &t
	}
	if d.ValidUntil != nil {
		t := *d.ValidUntil
		cp.ValidUntil = &t
	}
	return &cp
}
