package memory

import (
	"context"
	"slices"
	"time"

	"smartevents/internal/domain"
)

type checkoutRepository struct {
	s *Store
}

func NewCheckoutRepository(s *Store) domain.CheckoutRepository {
	return &checkoutRepository{s: s}
}

func (r *checkoutRepository) Create(ctx context.Context, c *domain.Checkout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.checkouts[c.ID]; exists {
		return domain.ErrCheckoutExists
	}
	cp := *c
	r.s.checkouts[c.ID] = &cp
	return nil
}

func (r *checkoutRepository) GetByID(ctx context.Context, id string) (*domain.Checkout, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.checkouts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *checkoutRepository) ListStuck(ctx context.Context, states []domain.CheckoutState, olderThan time.Time, limit int) ([]*domain.Checkout, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Checkout
	for _, c := range r.s.checkouts {
		if slices.Contains(states, c.State) && c.UpdatedAt.Before(olderThan) {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Checkout) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *checkoutRepository) Transition(ctx context.Context, id string, from []domain.CheckoutState, to domain.CheckoutState, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.checkouts[id]
	if !ok || !slices.Contains(from, c.State) {
		return domain.ErrInvalidTransition
	}
	c.State = to
	c.UpdatedAt = at
	return nil
}

func (r *checkoutRepository) Update(ctx context.Context, c *domain.Checkout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.checkouts[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	r.s.checkouts[c.ID] = &cp
	return nil
}
