package memory

import (
	"context"
	"sort"
	"time"

	"smartevents/internal/domain"
)

type paymentRepository struct {
	s *Store
}

func NewPaymentRepository(s *Store) domain.PaymentRepository {
	return &paymentRepository{s: s}
}

func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.PaymentStatus, gatewayRef, reason string, at time.Time) error {
	if !from.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[id]
	if !ok || p.Status != from {
		return domain.ErrInvalidTransition
	}
	p.Status = to
	if gatewayRef != "" {
		p.GatewayRef = gatewayRef
	}
	p.FailureReason = reason
	p.UpdatedAt = at
	return nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return r.filter(func(p *domain.Payment) bool { return p.UserID == userID }, true), nil
}

func (r *paymentRepository) ListByEvent(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Payment, int, error) {
	all := r.filter(func(p *domain.Payment) bool { return p.EventID == eventID }, true)
	total := len(all)
	start := params.Offset()
	if start >= total {
		return []*domain.Payment{}, total, nil
	}
	end := start + params.PageSize
	if params.PageSize <= 0 || end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *paymentRepository) ListOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Payment, 0)
	for _, p := range r.s.payments {
		if p.Status != domain.PaymentCompleted || !p.CreatedAt.Before(olderThan) {
			continue
		}
		if tid, ok := r.s.ticketByPay[p.ID]; ok && r.s.tickets[tid].Status != domain.TicketVoid {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return oldestFirst(out, limit), nil
}

func (r *paymentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	all := r.filter(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentPending && p.CreatedAt.Before(olderThan)
	}, false)
	return oldestFirst(all, limit), nil
}

func (r *paymentRepository) Revenue(ctx context.Context, eventID string) (*domain.Revenue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rev := &domain.Revenue{EventID: eventID, ByCurrency: map[string]int64{}}
	for _, p := range r.s.payments {
		if p.EventID != eventID {
			continue
		}
		switch p.Status {
		case domain.PaymentCompleted:
			rev.CompletedPayments++
			rev.ByCurrency[p.Currency] += p.Amount
		case domain.PaymentRefunded:
			rev.RefundedPayments++
		}
	}
	return rev, nil
}

func (r *paymentRepository) filter(keep func(*domain.Payment) bool, newestFirst bool) []*domain.Payment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Payment, 0)
	for _, p := range r.s.payments {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	if newestFirst {
		sortPaymentsDesc(out)
	}
	return out
}

func oldestFirst(ps []*domain.Payment, limit int) []*domain.Payment {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
	if limit > 0 && len(ps) > limit {
		ps = ps[:limit]
	}
	return ps
}
