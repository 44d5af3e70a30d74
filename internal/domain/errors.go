package domain

import "errors"

// Sentinel errors shared across services, repositories and controllers.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage marks an infrastructure fault in the backing store. A checkout
	// that hits it after charging is left for the reconciliation sweep.
	ErrStorage = errors.New("storage failure")
)

// Checkout business failures.
var (
	ErrInvalidCode       = errors.New("invalid discount code")
	ErrEventFull         = errors.New("event is full")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrPaymentTimeout    = errors.New("payment timed out")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrNotRegistered     = errors.New("not registered for this event")
	ErrDuplicateTicket   = errors.New("ticket already issued for payment")

	ErrCheckoutCancelled      = errors.New("checkout cancelled")
	ErrCheckoutNotCancellable = errors.New("checkout can no longer be cancelled")
	ErrInvalidTransition      = errors.New("invalid state transition")
)

// ValidationError reports malformed input. Fields lists the offending inputs.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msg := "validation failed: " + e.Fields[0]
	for _, f := range e.Fields[1:] {
		msg += "; " + f
	}
	return msg
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError returns nil when fields is empty.
func NewValidationError(fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
