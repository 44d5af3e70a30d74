package memory

import (
	"context"
	"time"

	"smartevents/internal/domain"
)

type eventRegistrationRepository struct {
	s *Store
}

func NewEventRegistrationRepository(s *Store) domain.EventRegistrationRepository {
	return &eventRegistrationRepository{s: s}
}

func (r *eventRegistrationRepository) Register(ctx context.Context, reg *domain.EventRegistration) (*domain.EventRegistration, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ev, ok := r.s.events[reg.EventID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if existing := r.activeLocked(reg.EventID, reg.UserID); existing != nil {
		cp := *existing
		return &cp, false, nil
	}
	if r.confirmedLocked(reg.EventID) >= ev.Capacity {
		return nil, false, domain.ErrEventFull
	}
	if reg.ID == "" {
		reg.ID = newID()
	}
	cp := *reg
	r.s.registrations[reg.ID] = &cp
	return reg, true, nil
}

func (r *eventRegistrationRepository) GetActive(ctx context.Context, eventID, userID string) (*domain.EventRegistration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reg := r.activeLocked(eventID, userID)
	if reg == nil {
		return nil, domain.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *eventRegistrationRepository) Cancel(ctx context.Context, eventID, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reg := r.activeLocked(eventID, userID)
	if reg == nil {
		return domain.ErrNotRegistered
	}
	reg.Status = domain.RegistrationCancelled
	reg.UpdatedAt = at
	return nil
}

func (r *eventRegistrationRepository) CountConfirmed(ctx context.Context, eventID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.confirmedLocked(eventID), nil
}

func (r *eventRegistrationRepository) activeLocked(eventID, userID string) *domain.EventRegistration {
	for _, reg := range r.s.registrations {
		if reg.EventID == eventID && reg.UserID == userID && reg.Status != domain.RegistrationCancelled {
			return reg
		}
	}
	return nil
}

func (r *eventRegistrationRepository) confirmedLocked(eventID string) int {
	n := 0
	for _, reg := range r.s.registrations {
		if reg.EventID == eventID && reg.Status == domain.RegistrationConfirmed {
			n++
		}
	}
	return n
}
