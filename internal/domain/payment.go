package domain

import (
	"context"
	"net/mail"
	"time"
)

// PaymentStatus represents the status of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethodFree is recorded for zero-amount checkouts that skip the gateway.
const PaymentMethodFree = "free"

// CanTransition reports whether a payment may move from s to next.
// Completed payments never go back to pending or failed.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentCompleted || next == PaymentFailed
	case PaymentCompleted:
		return next == PaymentRefunded
	}
	return false
}

// BillingInfo is the billing data supplied with a checkout.
// swagger:model BillingInfo
type BillingInfo struct {
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Address       map[string]string `json:"address,omitempty"`
	LastFour      string            `json:"last_four"`
	PaymentMethod string            `json:"payment_method"`
	// PaymentToken is the gateway payment method reference (e.g. a Stripe pm_ id).
	PaymentToken string `json:"payment_token,omitempty"`
}

// Validate returns the list of problems with the billing info.
func (b *BillingInfo) Validate() []string {
	var errs []string
	if b.Name == "" {
		errs = append(errs, "billing_info.name is required")
	}
	if b.Email == "" {
		errs = append(errs, "billing_info.email is required")
	} else if _, err := mail.ParseAddress(b.Email); err != nil {
		errs = append(errs, "billing_info.email is not a valid email address")
	}
	if len(b.LastFour) != 4 {
		errs = append(errs, "billing_info.last_four must be 4 digits")
	} else {
		for _, c := range b.LastFour {
			if c < '0' || c > '9' {
				errs = append(errs, "billing_info.last_four must be 4 digits")
				break
			}
		}
	}
	if b.PaymentMethod == "" {
		errs = append(errs, "billing_info.payment_method is required")
	}
	return errs
}

// Payment records one charge attempt for an (event, user) pair.
// swagger:model Payment
type Payment struct {
	ID            string        `json:"id"`
	CheckoutID    string        `json:"checkout_id"`
	UserID        string        `json:"user_id"`
	EventID       string        `json:"event_id"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	Method        string        `json:"payment_method"`
	Gateway       string        `json:"gateway"`
	GatewayRef    string        `json:"gateway_ref,omitempty"`
	DiscountCode  string        `json:"discount_code,omitempty"`
	BillingName   string        `json:"billing_name"`
	BillingEmail  string        `json:"billing_email"`
	LastFour      string        `json:"last_four"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PaymentRepository defines storage operations for payments. UpdateStatus
// only applies when the stored status equals from; otherwise it returns
// ErrInvalidTransition.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	UpdateStatus(ctx context.Context, id string, from, to PaymentStatus, gatewayRef, reason string, at time.Time) error
	ListByUser(ctx context.Context, userID string) ([]*Payment, error)
	ListByEvent(ctx context.Context, eventID string, p PaginationParams) ([]*Payment, int, error)
	// ListOrphaned returns completed payments created before olderThan that
	// have no non-void ticket.
	ListOrphaned(ctx context.Context, olderThan time.Time, limit int) ([]*Payment, error)
	// ListStalePending returns pending payments created before olderThan.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Payment, error)
	Revenue(ctx context.Context, eventID string) (*Revenue, error)
}

// ChargeRequest is what the orchestrator asks the payment processor to charge.
type ChargeRequest struct {
	CheckoutID   string
	UserID       string
	EventID      string
	Amount       int64
	Currency     string
	DiscountCode string
	Billing      BillingInfo
}

// GatewayCharge is the request sent to an external payment gateway.
type GatewayCharge struct {
	PaymentID      string
	Amount         int64
	Currency       string
	PaymentToken   string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// GatewayResult is the gateway's answer to a charge.
type GatewayResult struct {
	Success       bool
	TransactionID string
	FailureCode   string
	FailureReason string
}

// PaymentGateway is the external charge/refund collaborator.
type PaymentGateway interface {
	Charge(ctx context.Context, req *GatewayCharge) (*GatewayResult, error)
	Refund(ctx context.Context, transactionID string, amount int64) error
	// Lookup reports what the gateway did with the charge made for paymentID.
	// Success means money was captured. Attempts that can still capture are
	// cancelled first. ErrNotFound means the gateway never saw the payment.
	Lookup(ctx context.Context, paymentID string) (*GatewayResult, error)
	Name() string
}

// PaymentProcessor records payment attempts and their outcomes. It does not retry.
type PaymentProcessor interface {
	Charge(ctx context.Context, req ChargeRequest) (*Payment, error)
	// Settle resolves a pending payment against the gateway: completed when
	// the gateway captured the money, failed otherwise.
	Settle(ctx context.Context, paymentID string) (*Payment, error)
	Refund(ctx context.Context, paymentID, reason string) (*Payment, error)
	Get(ctx context.Context, paymentID string) (*Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*Payment, error)
}
