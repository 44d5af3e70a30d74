package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCheckoutExists is returned by CheckoutRepository.Create when the id is taken.
var ErrCheckoutExists = errors.New("checkout already exists")

// CheckoutState is a step of the checkout workflow.
type CheckoutState string

const (
	CheckoutStarted         CheckoutState = "started"
	CheckoutDiscountApplied CheckoutState = "discount_applied"
	// CheckoutCharging is held while the gateway call is in flight. A
	// checkout cannot be cancelled from here on.
	CheckoutCharging     CheckoutState = "charging"
	CheckoutCharged      CheckoutState = "charged"
	CheckoutRegistered   CheckoutState = "registered"
	CheckoutTicketIssued CheckoutState = "ticket_issued"
	CheckoutComplete     CheckoutState = "complete"

	CheckoutDeclined  CheckoutState = "declined"
	CheckoutFull      CheckoutState = "full"
	CheckoutAborted   CheckoutState = "aborted"
	CheckoutCancelled CheckoutState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s CheckoutState) Terminal() bool {
	switch s {
	case CheckoutComplete, CheckoutDeclined, CheckoutFull, CheckoutAborted, CheckoutCancelled:
		return true
	}
	return false
}

// Failed reports whether s is one of the failure exits.
func (s CheckoutState) Failed() bool {
	switch s {
	case CheckoutDeclined, CheckoutFull, CheckoutAborted, CheckoutCancelled:
		return true
	}
	return false
}

// PreCharge reports whether the checkout has not reached the gateway yet.
func (s CheckoutState) PreCharge() bool {
	return s == CheckoutStarted || s == CheckoutDiscountApplied
}

// Checkout is one persisted attempt of the checkout workflow.
// swagger:model Checkout
type Checkout struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	EventID        string        `json:"event_id"`
	PromoCode      string        `json:"promo_code,omitempty"`
	DiscountID     string        `json:"discount_id,omitempty"`
	State          CheckoutState `json:"state"`
	BasePrice      int64         `json:"base_price"`
	FinalPrice     int64         `json:"final_price"`
	Currency       string        `json:"currency"`
	PaymentID      string        `json:"payment_id,omitempty"`
	RegistrationID string        `json:"registration_id,omitempty"`
	TicketID       string        `json:"ticket_id,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CheckoutRepository defines storage operations for checkouts.
type CheckoutRepository interface {
	// Create returns ErrCheckoutExists when c.ID is already stored.
	Create(ctx context.Context, c *Checkout) error
	GetByID(ctx context.Context, id string) (*Checkout, error)
	// ListStuck returns checkouts in one of states last updated before
	// olderThan, oldest first.
	ListStuck(ctx context.Context, states []CheckoutState, olderThan time.Time, limit int) ([]*Checkout, error)
	// Transition moves the checkout to "to" only if its current state is one
	// of from. It returns ErrInvalidTransition otherwise.
	Transition(ctx context.Context, id string, from []CheckoutState, to CheckoutState, at time.Time) error
	// Update persists the mutable workflow fields and state of c.
	Update(ctx context.Context, c *Checkout) error
}

// CheckoutRequest is the input of a checkout.
type CheckoutRequest struct {
	CheckoutID string
	UserID     string
	EventID    string
	PromoCode  string
	Billing    BillingInfo
}

// CheckoutResult is what the caller learns from a completed checkout.
// swagger:model CheckoutResult
type CheckoutResult struct {
	CheckoutID string `json:"checkout_id"`
	TicketID   string `json:"ticket_id"`
	FinalPrice int64  `json:"final_price"`
	Currency   string `json:"currency"`
}

// CheckoutOrchestrator sequences discount, payment, registration and ticket
// issuance for one checkout.
type CheckoutOrchestrator interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	Cancel(ctx context.Context, userID, checkoutID string) error
	Get(ctx context.Context, userID, checkoutID string) (*Checkout, error)
	// Recover finishes or compensates a checkout whose payment completed but
	// never got a ticket.
	Recover(ctx context.Context, payment *Payment) (*Checkout, error)
}

// Reconciler sweeps for payments left behind by interrupted checkouts.
type Reconciler interface {
	RunOnce(ctx context.Context) (*ReconcileReport, error)
}

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Completed     int
	Refunded      int
	FailedPending int
	Errors        int
}

// ErrCheckoutInProgress is returned when a checkout id is replayed while the
// first attempt has not finished.
var ErrCheckoutInProgress = errors.New("checkout in progress")

// Failure reasons recorded on a checkout and reported as error codes.
const (
	ReasonDeclined          = "declined"
	ReasonTimeout           = "timeout"
	ReasonFull              = "full"
	ReasonInvalidCode       = "invalid_code"
	ReasonAlreadyRegistered = "already_registered"
	ReasonValidation        = "validation"
	ReasonCancelled         = "cancelled"
)

var reasonErrors = []struct {
	reason string
	err    error
}{
	{ReasonTimeout, ErrPaymentTimeout},
	{ReasonDeclined, ErrPaymentDeclined},
	{ReasonFull, ErrEventFull},
	{ReasonInvalidCode, ErrInvalidCode},
	{ReasonAlreadyRegistered, ErrAlreadyRegistered},
	{ReasonValidation, ErrInvalidInput},
	{ReasonCancelled, ErrCheckoutCancelled},
}

// FailureReason returns the reason code for a checkout business failure, or
// "" when err is not one.
func FailureReason(err error) string {
	for _, re := range reasonErrors {
		if errors.Is(err, re.err) {
			return re.reason
		}
	}
	return ""
}

// ReasonError is the inverse of FailureReason.
func ReasonError(reason string) error {
	for _, re := range reasonErrors {
		if re.reason == reason {
			return re.err
		}
	}
	return nil
}
