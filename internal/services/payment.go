package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smartevents/internal/domain"
)

// DefaultPaymentTimeout bounds one gateway charge.
const DefaultPaymentTimeout = 30 * time.Second

// PaymentConfig configures the payment processor.
type PaymentConfig struct {
	AcceptedCurrencies []string
	Timeout            time.Duration
}

type paymentProcessor struct {
	paymentRepo domain.PaymentRepository
	gateway     domain.PaymentGateway
	accepted    map[string]bool
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewPaymentProcessor returns a PaymentProcessor that charges through gateway.
func NewPaymentProcessor(paymentRepo domain.PaymentRepository, gateway domain.PaymentGateway, cfg PaymentConfig, logger *slog.Logger) domain.PaymentProcessor {
	accepted := make(map[string]bool, len(cfg.AcceptedCurrencies))
	for _, c := range cfg.AcceptedCurrencies {
		accepted[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPaymentTimeout
	}
	return &paymentProcessor{
		paymentRepo: paymentRepo,
		gateway:     gateway,
		accepted:    accepted,
		timeout:     cfg.Timeout,
		now:         time.Now,
		logger:      logger,
	}
}

// Charge records a pending payment and asks the gateway for the money. On
// decline the payment is returned failed alongside the error. On timeout or
// transport error the gateway is asked what happened and any capture is
// refunded. A zero amount is completed without calling the gateway.
func (p *paymentProcessor) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.Payment, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	now := p.now()
	payment := &domain.Payment{
		CheckoutID:   req.CheckoutID,
		UserID:       req.UserID,
		EventID:      req.EventID,
		Amount:       req.Amount,
		Currency:     strings.ToUpper(req.Currency),
		Status:       domain.PaymentPending,
		Method:       req.Billing.PaymentMethod,
		Gateway:      p.gateway.Name(),
		DiscountCode: req.DiscountCode,
		BillingName:  req.Billing.Name,
		BillingEmail: req.Billing.Email,
		LastFour:     req.Billing.LastFour,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Amount == 0 {
		payment.Status = domain.PaymentCompleted
		payment.Method = domain.PaymentMethodFree
		payment.Gateway = domain.PaymentMethodFree
		if err := p.paymentRepo.Create(ctx, payment); err != nil {
			return nil, fmt.Errorf("create payment: %w", err)
		}
		return payment, nil
	}
	if err := p.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	res, err := p.gateway.Charge(chargeCtx, &domain.GatewayCharge{
		PaymentID:      payment.ID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		PaymentToken:   req.Billing.PaymentToken,
		Description:    "Event registration " + req.EventID,
		IdempotencyKey: "charge-" + payment.ID,
		Metadata: map[string]string{
			"checkout_id": req.CheckoutID,
			"event_id":    req.EventID,
			"user_id":     req.UserID,
		},
	})
	// The status write must survive the caller's deadline.
	writeCtx := context.WithoutCancel(ctx)
	switch {
	case err != nil && errors.Is(chargeCtx.Err(), context.DeadlineExceeded):
		p.logger.WarnContext(ctx, "payment gateway timed out", "payment_id", payment.ID, "timeout", p.timeout)
		return p.unwind(writeCtx, payment, domain.ReasonTimeout, domain.ErrPaymentTimeout)
	case err != nil:
		p.logger.WarnContext(ctx, "payment gateway error", "payment_id", payment.ID, "err", err)
		return p.unwind(writeCtx, payment, "gateway error: "+err.Error(), domain.ErrPaymentDeclined)
	case !res.Success:
		reason := res.FailureReason
		if reason == "" {
			reason = res.FailureCode
		}
		return p.fail(writeCtx, payment, reason, domain.ErrPaymentDeclined)
	}

	if err := p.complete(writeCtx, payment, res.TransactionID); err != nil {
		// The pending row and the charge-<id> idempotency key are enough for
		// Settle to find this capture later.
		p.logger.ErrorContext(ctx, "charged but could not record payment", "payment_id", payment.ID, "gateway_ref", res.TransactionID, "err", err)
		return nil, err
	}
	return payment, nil
}

// unwind settles a charge whose outcome the gateway never reported. A
// capture found by lookup is recorded and refunded; no capture fails the
// payment. When the lookup itself fails the payment stays pending for the
// reconciliation sweep.
func (p *paymentProcessor) unwind(ctx context.Context, payment *domain.Payment, reason string, cause error) (*domain.Payment, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	res, err := p.gateway.Lookup(lookupCtx, payment.ID)
	switch {
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		p.logger.ErrorContext(ctx, "payment outcome unknown", "payment_id", payment.ID, "err", err)
		return payment, fmt.Errorf("%w: %s", cause, reason)
	case err != nil || !res.Success:
		return p.fail(ctx, payment, reason, cause)
	}

	p.logger.WarnContext(ctx, "late capture found, refunding", "payment_id", payment.ID, "gateway_ref", res.TransactionID)
	if err := p.complete(ctx, payment, res.TransactionID); err != nil {
		return nil, err
	}
	refunded, err := p.Refund(ctx, payment.ID, reason)
	if err != nil {
		p.logger.ErrorContext(ctx, "refund late capture", "payment_id", payment.ID, "err", err)
		return payment, fmt.Errorf("%w: %s", cause, reason)
	}
	return refunded, fmt.Errorf("%w: %s", cause, reason)
}

// Settle resolves a payment left pending by an interrupted charge. The
// gateway is asked whether the attempt captured: a capture completes the
// payment, anything else fails it as abandoned.
func (p *paymentProcessor) Settle(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := p.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.PaymentPending {
		return payment, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	res, err := p.gateway.Lookup(lookupCtx, payment.ID)
	switch {
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("gateway lookup: %w", err)
	case err != nil || !res.Success:
		payment, err = p.fail(ctx, payment, "abandoned", domain.ErrPaymentDeclined)
		if payment == nil {
			return nil, err
		}
		return payment, nil
	}
	if err := p.complete(ctx, payment, res.TransactionID); err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "pending payment settled as captured", "payment_id", payment.ID, "gateway_ref", res.TransactionID)
	return payment, nil
}

func (p *paymentProcessor) complete(ctx context.Context, payment *domain.Payment, ref string) error {
	at := p.now()
	if err := p.paymentRepo.UpdateStatus(ctx, payment.ID, domain.PaymentPending, domain.PaymentCompleted, ref, "", at); err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}
	payment.Status = domain.PaymentCompleted
	payment.GatewayRef = ref
	payment.UpdatedAt = at
	return nil
}

func (p *paymentProcessor) fail(ctx context.Context, payment *domain.Payment, reason string, cause error) (*domain.Payment, error) {
	at := p.now()
	if err := p.paymentRepo.UpdateStatus(ctx, payment.ID, domain.PaymentPending, domain.PaymentFailed, "", reason, at); err != nil {
		return nil, fmt.Errorf("fail payment: %w", err)
	}
	payment.Status = domain.PaymentFailed
	payment.FailureReason = reason
	payment.UpdatedAt = at
	return payment, fmt.Errorf("%w: %s", cause, reason)
}

func (p *paymentProcessor) validate(req domain.ChargeRequest) error {
	errs := req.Billing.Validate()
	if req.UserID == "" {
		errs = append(errs, "user_id is required")
	}
	if req.EventID == "" {
		errs = append(errs, "event_id is required")
	}
	if req.Amount < 0 {
		errs = append(errs, "amount must not be negative")
	}
	if !p.accepted[strings.ToUpper(req.Currency)] {
		errs = append(errs, fmt.Sprintf("currency %q is not accepted", req.Currency))
	}
	return domain.NewValidationError(errs...)
}

// Refund returns the money of a completed payment. Refunding an already
// refunded payment is a no-op.
func (p *paymentProcessor) Refund(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	payment, err := p.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch payment.Status {
	case domain.PaymentRefunded:
		return payment, nil
	case domain.PaymentCompleted:
	default:
		return nil, fmt.Errorf("refund %s payment: %w", payment.Status, domain.ErrInvalidTransition)
	}

	if payment.Amount > 0 && payment.Method != domain.PaymentMethodFree {
		if err := p.gateway.Refund(ctx, payment.GatewayRef, payment.Amount); err != nil {
			return nil, fmt.Errorf("gateway refund: %w", err)
		}
	}
	at := p.now()
	if err := p.paymentRepo.UpdateStatus(ctx, payment.ID, domain.PaymentCompleted, domain.PaymentRefunded, payment.GatewayRef, reason, at); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// A concurrent refund got there first.
			return p.Get(ctx, paymentID)
		}
		return nil, fmt.Errorf("mark payment refunded: %w", err)
	}
	payment.Status = domain.PaymentRefunded
	payment.FailureReason = reason
	payment.UpdatedAt = at
	p.logger.InfoContext(ctx, "payment refunded", "payment_id", payment.ID, "amount", payment.Amount, "reason", reason)
	return payment, nil
}

func (p *paymentProcessor) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := p.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

func (p *paymentProcessor) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	payments, err := p.paymentRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	return payments, nil
}
