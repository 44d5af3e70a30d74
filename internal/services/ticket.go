package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartevents/internal/domain"
)

type ticketIssuer struct {
	ticketRepo domain.TicketRepository
	now        func() time.Time
}

// NewTicketIssuer returns a TicketIssuer backed by ticketRepo.
func NewTicketIssuer(ticketRepo domain.TicketRepository) domain.TicketIssuer {
	return &ticketIssuer{ticketRepo: ticketRepo, now: time.Now}
}

// Issue creates a paid ticket for a completed payment. A second ticket for
// the same payment fails with ErrDuplicateTicket.
func (t *ticketIssuer) Issue(ctx context.Context, req domain.IssueTicketRequest) (*domain.Ticket, error) {
	var errs []string
	if req.PaymentID == "" {
		errs = append(errs, "payment_id is required")
	}
	if req.EventID == "" || req.AttendeeID == "" {
		errs = append(errs, "event_id and attendee_id are required")
	}
	if req.Price < 0 {
		errs = append(errs, "price must not be negative")
	}
	if err := domain.NewValidationError(errs...); err != nil {
		return nil, err
	}

	now := t.now()
	ticket := &domain.Ticket{
		PaymentID:    req.PaymentID,
		EventID:      req.EventID,
		AttendeeID:   req.AttendeeID,
		Price:        req.Price,
		Currency:     req.Currency,
		Status:       domain.TicketPaid,
		DiscountCode: req.DiscountCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := t.ticketRepo.Create(ctx, ticket); err != nil {
		if errors.Is(err, domain.ErrDuplicateTicket) {
			return nil, domain.ErrDuplicateTicket
		}
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return ticket, nil
}

func (t *ticketIssuer) ForPayment(ctx context.Context, paymentID string) (*domain.Ticket, error) {
	ticket, err := t.ticketRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get ticket by payment: %w", err)
	}
	return ticket, nil
}

// Void invalidates a ticket whose payment is being refunded.
func (t *ticketIssuer) Void(ctx context.Context, ticketID string) error {
	if err := t.ticketRepo.UpdateStatus(ctx, ticketID, domain.TicketVoid, t.now()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("void ticket: %w", err)
	}
	return nil
}

func (t *ticketIssuer) ListByAttendee(ctx context.Context, attendeeID string) ([]*domain.Ticket, error) {
	tickets, err := t.ticketRepo.ListByAttendee(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []*domain.Ticket{}
	}
	return tickets, nil
}
