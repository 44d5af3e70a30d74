package domain

import (
	"context"
	"time"
)

// TicketStatus is the payment state of a ticket.
type TicketStatus string

const (
	TicketUnpaid TicketStatus = "unpaid"
	TicketPaid   TicketStatus = "paid"
	// TicketVoid marks a ticket whose payment was refunded by compensation.
	TicketVoid TicketStatus = "void"
)

// Ticket is issued once per completed payment. Price equals the payment amount.
// swagger:model Ticket
type Ticket struct {
	ID           string       `json:"id"`
	PaymentID    string       `json:"payment_id"`
	EventID      string       `json:"event_id"`
	AttendeeID   string       `json:"attendee_id"`
	Price        int64        `json:"price"`
	Currency     string       `json:"currency"`
	Status       TicketStatus `json:"status"`
	DiscountCode string       `json:"discount_code,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TicketRepository defines storage operations for tickets.
type TicketRepository interface {
	// Create returns ErrDuplicateTicket when a ticket already references t.PaymentID.
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id string) (*Ticket, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Ticket, error)
	ListByAttendee(ctx context.Context, attendeeID string) ([]*Ticket, error)
	UpdateStatus(ctx context.Context, id string, status TicketStatus, at time.Time) error
}

// IssueTicketRequest carries the inputs of Ticket Issuer.
type IssueTicketRequest struct {
	PaymentID    string
	EventID      string
	AttendeeID   string
	Price        int64
	Currency     string
	DiscountCode string
}

// TicketIssuer creates tickets tied to a completed payment.
type TicketIssuer interface {
	Issue(ctx context.Context, req IssueTicketRequest) (*Ticket, error)
	ForPayment(ctx context.Context, paymentID string) (*Ticket, error)
	Void(ctx context.Context, ticketID string) error
	ListByAttendee(ctx context.Context, attendeeID string) ([]*Ticket, error)
}
