package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smartevents/internal/domain"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGatewayConfig holds configuration for the Stripe gateway.
type StripeGatewayConfig struct {
	SecretKey string
}

// StripeGateway charges by creating and confirming a PaymentIntent in one call.
type StripeGateway struct {
	newIntent     func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	newRefund     func(*stripe.RefundParams) (*stripe.Refund, error)
	searchIntents func(*stripe.PaymentIntentSearchParams) ([]*stripe.PaymentIntent, error)
	cancelIntent  func(string, *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// NewStripeGateway creates a new Stripe gateway.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = cfg.SecretKey
	return &StripeGateway{
		newIntent:     paymentintent.New,
		newRefund:     refund.New,
		searchIntents: searchIntents,
		cancelIntent:  paymentintent.Cancel,
	}, nil
}

func searchIntents(params *stripe.PaymentIntentSearchParams) ([]*stripe.PaymentIntent, error) {
	var out []*stripe.PaymentIntent
	iter := paymentintent.Search(params)
	for iter.Next() {
		out = append(out, iter.PaymentIntent())
	}
	return out, iter.Err()
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Charge(ctx context.Context, req *domain.GatewayCharge) (*domain.GatewayResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentToken),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: map[string]string{"payment_id": req.PaymentID},
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := callWithContext(ctx, func() (*stripe.PaymentIntent, error) { return g.newIntent(params) })
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			return &domain.GatewayResult{Success: false, FailureCode: string(serr.Code), FailureReason: serr.Msg}, nil
		}
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	res := &domain.GatewayResult{TransactionID: pi.ID}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Success = true
	case stripe.PaymentIntentStatusCanceled:
		res.FailureCode = "canceled"
		res.FailureReason = "payment canceled"
	default:
		res.FailureCode = string(pi.Status)
		res.FailureReason = "payment requires further action"
	}
	return res, nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amount int64) error {
	if transactionID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(amount),
	}
	params.SetIdempotencyKey("refund-" + transactionID)
	_, err := callWithContext(ctx, func() (*stripe.Refund, error) { return g.newRefund(params) })
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Code == stripe.ErrorCodeChargeAlreadyRefunded {
			return nil
		}
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}

// Lookup finds the PaymentIntents tagged with paymentID. A succeeded intent
// is reported as captured; intents that could still capture are cancelled.
// Search results lag writes by up to a minute, so a recent attempt may be
// reported as not found.
func (g *StripeGateway) Lookup(ctx context.Context, paymentID string) (*domain.GatewayResult, error) {
	if paymentID == "" {
		return nil, domain.ErrNotFound
	}
	params := &stripe.PaymentIntentSearchParams{}
	params.Query = fmt.Sprintf("metadata['payment_id']:'%s'", paymentID)
	intents, err := callWithContext(ctx, func() ([]*stripe.PaymentIntent, error) { return g.searchIntents(params) })
	if err != nil {
		return nil, fmt.Errorf("search payment intents: %w", err)
	}
	if len(intents) == 0 {
		return nil, domain.ErrNotFound
	}

	var res *domain.GatewayResult
	for _, pi := range intents {
		switch pi.Status {
		case stripe.PaymentIntentStatusSucceeded:
			return &domain.GatewayResult{Success: true, TransactionID: pi.ID}, nil
		case stripe.PaymentIntentStatusProcessing:
			return nil, fmt.Errorf("payment intent %s is still processing", pi.ID)
		case stripe.PaymentIntentStatusCanceled:
		default:
			_, err := callWithContext(ctx, func() (*stripe.PaymentIntent, error) { return g.cancelIntent(pi.ID, &stripe.PaymentIntentCancelParams{}) })
			if err != nil {
				return nil, fmt.Errorf("cancel payment intent %s: %w", pi.ID, err)
			}
		}
		res = &domain.GatewayResult{TransactionID: pi.ID, FailureCode: "canceled", FailureReason: "payment canceled"}
	}
	return res, nil
}

// callWithContext returns when ctx ends even if the blocking SDK call has not.
// The idempotency key makes a later retry of the same call safe.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}
