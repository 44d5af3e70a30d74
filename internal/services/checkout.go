package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smartevents/internal/domain"
	"smartevents/internal/retry"

	"github.com/google/uuid"
)

// CheckoutDeps are the collaborators of the checkout orchestrator.
type CheckoutDeps struct {
	Events    domain.EventRepository
	Checkouts domain.CheckoutRepository
	Discounts domain.DiscountResolver
	Payments  domain.PaymentProcessor
	Ledger    domain.RegistrationLedger
	Tickets   domain.TicketIssuer
	Outbox    domain.OutboxRepository
	Email     domain.EmailService
	// RefundRetry controls how compensating refunds are retried.
	RefundRetry retry.Config
}

type checkoutOrchestrator struct {
	events    domain.EventRepository
	checkouts domain.CheckoutRepository
	discounts domain.DiscountResolver
	payments  domain.PaymentProcessor
	ledger    domain.RegistrationLedger
	tickets   domain.TicketIssuer
	outbox    domain.OutboxRepository
	email     domain.EmailService
	refunds   *retry.Retrier
	now       func() time.Time
	logger    *slog.Logger
}

// NewCheckoutOrchestrator wires the checkout workflow.
func NewCheckoutOrchestrator(deps CheckoutDeps, logger *slog.Logger) domain.CheckoutOrchestrator {
	return &checkoutOrchestrator{
		events:    deps.Events,
		checkouts: deps.Checkouts,
		discounts: deps.Discounts,
		payments:  deps.Payments,
		ledger:    deps.Ledger,
		tickets:   deps.Tickets,
		outbox:    deps.Outbox,
		email:     deps.Email,
		refunds:   retry.New(deps.RefundRetry),
		now:       time.Now,
		logger:    logger,
	}
}

var preCharge = []domain.CheckoutState{domain.CheckoutStarted, domain.CheckoutDiscountApplied}

// Checkout runs discount -> charge -> register -> ticket -> redeem. Business
// failures after the charge are compensated; storage failures are not, and
// leave the checkout for the reconciliation sweep.
func (o *checkoutOrchestrator) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}
	if req.CheckoutID == "" {
		req.CheckoutID = uuid.NewString()
	}
	log := o.logger.With("checkout_id", req.CheckoutID, "event_id", req.EventID)

	event, err := o.events.GetByID(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	now := o.now()
	c := &domain.Checkout{
		ID:         req.CheckoutID,
		UserID:     req.UserID,
		EventID:    req.EventID,
		PromoCode:  NormalizeCode(req.PromoCode),
		State:      domain.CheckoutStarted,
		BasePrice:  event.BasePrice,
		FinalPrice: event.BasePrice,
		Currency:   event.Currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.checkouts.Create(ctx, c); err != nil {
		if errors.Is(err, domain.ErrCheckoutExists) {
			return o.replay(ctx, req)
		}
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	if _, err := o.ledger.GetActive(ctx, req.UserID, req.EventID); err == nil {
		return nil, o.abort(ctx, c, domain.ErrAlreadyRegistered)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, o.abortOnError(ctx, c, err)
	}

	var discount *domain.DiscountCode
	if c.PromoCode != "" {
		res, err := o.discounts.Resolve(ctx, req.EventID, c.PromoCode)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCode) {
				return nil, o.abort(ctx, c, domain.ErrInvalidCode)
			}
			return nil, o.abortOnError(ctx, c, err)
		}
		if err := o.transition(ctx, c, []domain.CheckoutState{domain.CheckoutStarted}, domain.CheckoutDiscountApplied); err != nil {
			return nil, err
		}
		discount = res.Discount
		c.DiscountID = res.Discount.ID
		c.FinalPrice = res.FinalPrice
	}

	// From here on the checkout cannot be cancelled.
	if err := o.transition(ctx, c, preCharge, domain.CheckoutCharging); err != nil {
		return nil, err
	}
	if err := o.save(ctx, c); err != nil {
		return nil, err
	}

	payment, err := o.payments.Charge(ctx, domain.ChargeRequest{
		CheckoutID:   c.ID,
		UserID:       c.UserID,
		EventID:      c.EventID,
		Amount:       c.FinalPrice,
		Currency:     c.Currency,
		DiscountCode: c.PromoCode,
		Billing:      req.Billing,
	})
	if payment != nil {
		c.PaymentID = payment.ID
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentTimeout), errors.Is(err, domain.ErrPaymentDeclined):
			return nil, o.finish(ctx, c, domain.CheckoutDeclined, err)
		case errors.Is(err, domain.ErrInvalidInput):
			return nil, o.finish(ctx, c, domain.CheckoutAborted, err)
		}
		log.ErrorContext(ctx, "charge failed", "err", err)
		return nil, err
	}
	log.InfoContext(ctx, "payment completed", "payment_id", payment.ID, "amount", payment.Amount)

	c.State = domain.CheckoutCharged
	if err := o.save(ctx, c); err != nil {
		return nil, err
	}
	return o.complete(ctx, c, payment, discount, false)
}

// complete runs the post-charge steps from CheckoutCharged onwards. resumed
// is set when the sweep picks up a checkout interrupted after charging.
func (o *checkoutOrchestrator) complete(ctx context.Context, c *domain.Checkout, payment *domain.Payment, discount *domain.DiscountCode, resumed bool) (*domain.CheckoutResult, error) {
	log := o.logger.With("checkout_id", c.ID, "payment_id", payment.ID)

	if c.State == domain.CheckoutCharged {
		reg, created, err := o.ledger.Register(ctx, c.UserID, c.EventID)
		switch {
		case errors.Is(err, domain.ErrEventFull):
			log.InfoContext(ctx, "event full after charge, refunding")
			o.compensate(ctx, c, payment, "", false, domain.ReasonFull)
			return nil, o.finish(ctx, c, domain.CheckoutFull, domain.ErrEventFull)
		case err != nil:
			return nil, err
		case !created && reg.ID != c.RegistrationID:
			owned, err := o.ownsRegistration(ctx, c, payment, resumed)
			if err != nil {
				return nil, err
			}
			if !owned {
				log.InfoContext(ctx, "registered concurrently by another checkout, refunding")
				o.compensate(ctx, c, payment, "", false, domain.ReasonAlreadyRegistered)
				return nil, o.finish(ctx, c, domain.CheckoutAborted, domain.ErrAlreadyRegistered)
			}
		}
		c.RegistrationID = reg.ID
		c.State = domain.CheckoutRegistered
		if err := o.save(ctx, c); err != nil {
			return nil, err
		}
	}

	ticket, err := o.tickets.Issue(ctx, domain.IssueTicketRequest{
		PaymentID:    payment.ID,
		EventID:      c.EventID,
		AttendeeID:   c.UserID,
		Price:        payment.Amount,
		Currency:     payment.Currency,
		DiscountCode: c.PromoCode,
	})
	if errors.Is(err, domain.ErrDuplicateTicket) {
		ticket, err = o.tickets.ForPayment(ctx, payment.ID)
	}
	if err != nil {
		return nil, err
	}
	c.TicketID = ticket.ID
	c.State = domain.CheckoutTicketIssued
	if err := o.save(ctx, c); err != nil {
		return nil, err
	}

	if discount != nil {
		if err := o.discounts.Redeem(ctx, discount, c.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidCode) {
				log.InfoContext(ctx, "discount exhausted by a concurrent checkout, compensating")
				o.compensate(ctx, c, payment, ticket.ID, true, domain.ReasonInvalidCode)
				return nil, o.finish(ctx, c, domain.CheckoutAborted, domain.ErrInvalidCode)
			}
			return nil, err
		}
	}

	c.State = domain.CheckoutComplete
	if err := o.save(ctx, c); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "checkout complete", "ticket_id", ticket.ID)

	emit(ctx, o.outbox, o.logger, domain.TopicCheckoutCompleted, domain.CheckoutCompletedEvent{
		CheckoutID:   c.ID,
		EventID:      c.EventID,
		UserID:       c.UserID,
		PaymentID:    payment.ID,
		TicketID:     ticket.ID,
		Amount:       payment.Amount,
		Currency:     payment.Currency,
		DiscountCode: c.PromoCode,
		OccurredAt:   c.UpdatedAt,
	})
	o.sendConfirmation(ctx, c, payment, ticket)

	return &domain.CheckoutResult{
		CheckoutID: c.ID,
		TicketID:   ticket.ID,
		FinalPrice: payment.Amount,
		Currency:   payment.Currency,
	}, nil
}

// ownsRegistration decides whether an existing active registration was made
// by this checkout in an earlier, interrupted run. On the first run the
// registration check before charging makes that impossible.
func (o *checkoutOrchestrator) ownsRegistration(ctx context.Context, c *domain.Checkout, payment *domain.Payment, resumed bool) (bool, error) {
	if !resumed {
		return false, nil
	}
	tickets, err := o.tickets.ListByAttendee(ctx, c.UserID)
	if err != nil {
		return false, err
	}
	for _, t := range tickets {
		if t.EventID == c.EventID && t.Status != domain.TicketVoid && t.PaymentID != payment.ID {
			return false, nil
		}
	}
	return true, nil
}

// compensate undoes the completed steps in reverse order. Failures are logged;
// a payment left completed without a ticket is picked up by the sweep.
func (o *checkoutOrchestrator) compensate(ctx context.Context, c *domain.Checkout, payment *domain.Payment, ticketID string, unregister bool, reason string) {
	ctx = context.WithoutCancel(ctx)
	log := o.logger.With("checkout_id", c.ID, "payment_id", payment.ID, "reason", reason)

	if ticketID != "" {
		if err := o.tickets.Void(ctx, ticketID); err != nil {
			log.ErrorContext(ctx, "compensation: void ticket", "ticket_id", ticketID, "err", err)
		}
	}
	if unregister {
		if err := o.ledger.Unregister(ctx, c.UserID, c.EventID); err != nil && !errors.Is(err, domain.ErrNotRegistered) {
			log.ErrorContext(ctx, "compensation: cancel registration", "err", err)
		}
	}

	var refunded *domain.Payment
	err := o.refunds.Do(ctx, func(ctx context.Context) error {
		p, err := o.payments.Refund(ctx, payment.ID, reason)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidTransition) {
			return retry.Permanent(err)
		}
		refunded = p
		return err
	})
	if err != nil {
		log.ErrorContext(ctx, "compensation: refund failed", "err", err)
		return
	}

	emit(ctx, o.outbox, o.logger, domain.TopicPaymentRefunded, domain.PaymentRefundedEvent{
		PaymentID:  refunded.ID,
		CheckoutID: c.ID,
		EventID:    c.EventID,
		UserID:     c.UserID,
		Amount:     refunded.Amount,
		Currency:   refunded.Currency,
		Reason:     reason,
		OccurredAt: o.now(),
	})
	o.sendRefundNotice(ctx, c, refunded, reason)
}

// Cancel stops a checkout that has not reached the gateway.
func (o *checkoutOrchestrator) Cancel(ctx context.Context, userID, checkoutID string) error {
	c, err := o.Get(ctx, userID, checkoutID)
	if err != nil {
		return err
	}
	if c.State == domain.CheckoutCancelled {
		return nil
	}
	if err := o.checkouts.Transition(ctx, checkoutID, preCharge, domain.CheckoutCancelled, o.now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.ErrCheckoutNotCancellable
		}
		return fmt.Errorf("cancel checkout: %w", err)
	}
	o.logger.InfoContext(ctx, "checkout cancelled", "checkout_id", checkoutID)
	return nil
}

func (o *checkoutOrchestrator) Get(ctx context.Context, userID, checkoutID string) (*domain.Checkout, error) {
	c, err := o.checkouts.GetByID(ctx, checkoutID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get checkout: %w", err)
	}
	if c.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return c, nil
}

// Recover finishes a checkout whose payment completed without a ticket, or
// refunds the payment when the checkout already failed.
func (o *checkoutOrchestrator) Recover(ctx context.Context, payment *domain.Payment) (*domain.Checkout, error) {
	c, err := o.checkouts.GetByID(ctx, payment.CheckoutID)
	if errors.Is(err, domain.ErrNotFound) {
		c = &domain.Checkout{
			ID:            payment.CheckoutID,
			UserID:        payment.UserID,
			EventID:       payment.EventID,
			PaymentID:     payment.ID,
			State:         domain.CheckoutAborted,
			FailureReason: "orphaned payment",
		}
		if err := o.refundNow(ctx, c, payment, c.FailureReason); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout: %w", err)
	}

	switch {
	case c.State.Failed():
		reason := c.FailureReason
		if reason == "" {
			reason = string(c.State)
		}
		if err := o.refundNow(ctx, c, payment, reason); err != nil {
			return nil, err
		}
		return c, nil
	case c.State == domain.CheckoutComplete:
		return c, nil
	case c.TicketID != "":
		voided, err := o.ticketVoided(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		if !voided {
			// Interrupted before the redemption; complete retries it.
			break
		}
		// Only a lost discount race voids an issued ticket; its compensation
		// was interrupted before the refund.
		if err := o.refundNow(ctx, c, payment, domain.ReasonInvalidCode); err != nil {
			return nil, err
		}
		if err := o.finish(ctx, c, domain.CheckoutAborted, domain.ErrInvalidCode); !errors.Is(err, domain.ErrInvalidCode) {
			return nil, err
		}
		return c, nil
	}

	c.PaymentID = payment.ID
	c.FinalPrice = payment.Amount
	if c.State == domain.CheckoutCharging {
		c.State = domain.CheckoutCharged
	}
	var discount *domain.DiscountCode
	if c.DiscountID != "" {
		discount = &domain.DiscountCode{ID: c.DiscountID, Code: c.PromoCode}
	}
	if _, err := o.complete(ctx, c, payment, discount, true); err != nil && domain.FailureReason(err) == "" {
		return nil, err
	}
	return c, nil
}

func (o *checkoutOrchestrator) ticketVoided(ctx context.Context, paymentID string) (bool, error) {
	t, err := o.tickets.ForPayment(ctx, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return t.Status == domain.TicketVoid, nil
}

func (o *checkoutOrchestrator) refundNow(ctx context.Context, c *domain.Checkout, payment *domain.Payment, reason string) error {
	refunded, err := o.payments.Refund(ctx, payment.ID, reason)
	if err != nil {
		return err
	}
	emit(ctx, o.outbox, o.logger, domain.TopicPaymentRefunded, domain.PaymentRefundedEvent{
		PaymentID:  refunded.ID,
		CheckoutID: c.ID,
		EventID:    refunded.EventID,
		UserID:     refunded.UserID,
		Amount:     refunded.Amount,
		Currency:   refunded.Currency,
		Reason:     reason,
		OccurredAt: o.now(),
	})
	o.sendRefundNotice(ctx, c, refunded, reason)
	return nil
}

// replay answers a checkout id that was already used.
func (o *checkoutOrchestrator) replay(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	c, err := o.Get(ctx, req.UserID, req.CheckoutID)
	if err != nil {
		return nil, err
	}
	switch {
	case c.State == domain.CheckoutComplete:
		return &domain.CheckoutResult{CheckoutID: c.ID, TicketID: c.TicketID, FinalPrice: c.FinalPrice, Currency: c.Currency}, nil
	case c.State.Failed():
		if cause := domain.ReasonError(c.FailureReason); cause != nil {
			return nil, cause
		}
		switch c.State {
		case domain.CheckoutCancelled:
			return nil, domain.ErrCheckoutCancelled
		case domain.CheckoutDeclined:
			return nil, domain.ErrPaymentDeclined
		case domain.CheckoutFull:
			return nil, domain.ErrEventFull
		}
		return nil, fmt.Errorf("checkout %s: %s", c.State, c.FailureReason)
	}
	return nil, domain.ErrCheckoutInProgress
}

// transition applies a persisted state change that a concurrent Cancel may race.
func (o *checkoutOrchestrator) transition(ctx context.Context, c *domain.Checkout, from []domain.CheckoutState, to domain.CheckoutState) error {
	now := o.now()
	if err := o.checkouts.Transition(ctx, c.ID, from, to, now); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.ErrCheckoutCancelled
		}
		return fmt.Errorf("transition checkout: %w", err)
	}
	c.State = to
	c.UpdatedAt = now
	return nil
}

func (o *checkoutOrchestrator) save(ctx context.Context, c *domain.Checkout) error {
	c.UpdatedAt = o.now()
	if err := o.checkouts.Update(ctx, c); err != nil {
		o.logger.ErrorContext(ctx, "persist checkout", "checkout_id", c.ID, "state", c.State, "err", err)
		return fmt.Errorf("update checkout: %w", err)
	}
	return nil
}

// abort ends a checkout that never reached the gateway and returns cause.
func (o *checkoutOrchestrator) abort(ctx context.Context, c *domain.Checkout, cause error) error {
	c.FailureReason = domain.FailureReason(cause)
	if c.FailureReason == "" {
		c.FailureReason = "internal error"
	}
	if err := o.checkouts.Transition(ctx, c.ID, preCharge, domain.CheckoutAborted, o.now()); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.ErrCheckoutCancelled
		}
		return fmt.Errorf("abort checkout: %w", err)
	}
	c.State = domain.CheckoutAborted
	if err := o.save(ctx, c); err != nil {
		// State is already aborted; only the reason is missing.
		o.logger.WarnContext(ctx, "record abort reason", "checkout_id", c.ID, "cause", cause, "err", err)
	}
	return cause
}

// abortOnError aborts a checkout whose pre-charge step failed on
// infrastructure and returns that error.
func (o *checkoutOrchestrator) abortOnError(ctx context.Context, c *domain.Checkout, cause error) error {
	if err := o.abort(context.WithoutCancel(ctx), c, cause); err != nil && !errors.Is(err, cause) {
		o.logger.ErrorContext(ctx, "abort checkout", "checkout_id", c.ID, "err", err)
	}
	return cause
}

// finish records a terminal failure state and returns cause.
func (o *checkoutOrchestrator) finish(ctx context.Context, c *domain.Checkout, state domain.CheckoutState, cause error) error {
	c.State = state
	c.FailureReason = domain.FailureReason(cause)
	if err := o.save(context.WithoutCancel(ctx), c); err != nil {
		return err
	}
	return cause
}

func (o *checkoutOrchestrator) sendConfirmation(ctx context.Context, c *domain.Checkout, payment *domain.Payment, ticket *domain.Ticket) {
	if o.email == nil {
		return
	}
	eventName := c.EventID
	if ev, err := o.events.GetByID(ctx, c.EventID); err == nil {
		eventName = ev.Name
	}
	err := o.email.SendTicketConfirmation(ctx, &domain.TicketConfirmationEmailData{
		Email:        payment.BillingEmail,
		Name:         payment.BillingName,
		EventName:    eventName,
		TicketID:     ticket.ID,
		Amount:       formatAmount(payment.Amount, payment.Currency),
		DiscountCode: c.PromoCode,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "ticket confirmation email failed", "checkout_id", c.ID, "err", err)
	}
}

func (o *checkoutOrchestrator) sendRefundNotice(ctx context.Context, c *domain.Checkout, payment *domain.Payment, reason string) {
	if o.email == nil || payment.BillingEmail == "" {
		return
	}
	eventName := c.EventID
	if ev, err := o.events.GetByID(ctx, payment.EventID); err == nil {
		eventName = ev.Name
	}
	err := o.email.SendRefundNotice(ctx, &domain.RefundNoticeEmailData{
		Email:     payment.BillingEmail,
		Name:      payment.BillingName,
		EventName: eventName,
		PaymentID: payment.ID,
		Amount:    formatAmount(payment.Amount, payment.Currency),
		Reason:    reason,
	})
	if err != nil {
		o.logger.WarnContext(ctx, "refund notice email failed", "checkout_id", c.ID, "err", err)
	}
}

func validateCheckout(req domain.CheckoutRequest) error {
	errs := req.Billing.Validate()
	if req.UserID == "" {
		errs = append(errs, "user_id is required")
	}
	if req.EventID == "" {
		errs = append(errs, "event_id is required")
	}
	if len(req.CheckoutID) > 64 {
		errs = append(errs, "checkout_id must be at most 64 characters")
	}
	return domain.NewValidationError(errs...)
}
