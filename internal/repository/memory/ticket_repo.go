package memory

import (
	"context"
	"sort"
	"time"

	"smartevents/internal/domain"
)

type ticketRepository struct {
	s *Store
}

func NewTicketRepository(s *Store) domain.TicketRepository {
	return &ticketRepository{s: s}
}

func (r *ticketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.ticketByPay[t.PaymentID]; exists {
		return domain.ErrDuplicateTicket
	}
	if t.ID == "" {
		t.ID = newID()
	}
	cp := *t
	r.s.tickets[t.ID] = &cp
	r.s.ticketByPay[t.PaymentID] = t.ID
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *ticketRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.ticketByPay[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r.s.tickets[id]
	return &cp, nil
}

func (r *ticketRepository) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Ticket, 0)
	for _, t := range r.s.tickets {
		if t.AttendeeID == attendeeID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = at
	return nil
}
