package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"smartevents/internal/adapters/payment"
	"smartevents/internal/domain"
	"smartevents/internal/repository/memory"
	"smartevents/internal/retry"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type recordingEmail struct {
	mu            sync.Mutex
	confirmations []*domain.TicketConfirmationEmailData
	refunds       []*domain.RefundNoticeEmailData
}

func (e *recordingEmail) SendTicketConfirmation(ctx context.Context, data *domain.TicketConfirmationEmailData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmations = append(e.confirmations, data)
	return nil
}

func (e *recordingEmail) SendRefundNotice(ctx context.Context, data *domain.RefundNoticeEmailData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refunds = append(e.refunds, data)
	return nil
}

type harness struct {
	store     *memory.Store
	repos     memory.Repositories
	gateway   *payment.MockGateway
	email     *recordingEmail
	discounts domain.DiscountResolver
	payments  domain.PaymentProcessor
	ledger    domain.RegistrationLedger
	tickets   domain.TicketIssuer
	orch      *checkoutOrchestrator
}

type harnessOption func(*CheckoutDeps, *PaymentConfig)

func withPaymentTimeout(d time.Duration) harnessOption {
	return func(_ *CheckoutDeps, pc *PaymentConfig) { pc.Timeout = d }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	h := &harness{
		store:   store,
		repos:   repos,
		gateway: payment.NewMockGateway(payment.MockGatewayConfig{}),
		email:   &recordingEmail{},
	}
	pc := PaymentConfig{AcceptedCurrencies: []string{"USD", "EUR"}}
	deps := CheckoutDeps{
		Events:      repos.Events,
		Checkouts:   repos.Checkouts,
		Outbox:      repos.Outbox,
		Email:       h.email,
		RefundRetry: retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}
	for _, opt := range opts {
		opt(&deps, &pc)
	}
	h.discounts = NewDiscountResolver(repos.Events, repos.Discounts)
	h.payments = NewPaymentProcessor(repos.Payments, h.gateway, pc, discardLogger())
	h.ledger = NewRegistrationLedger(repos.Events, repos.Registrations, repos.Outbox, discardLogger())
	h.tickets = NewTicketIssuer(repos.Tickets)
	if deps.Discounts == nil {
		deps.Discounts = h.discounts
	}
	if deps.Payments == nil {
		deps.Payments = h.payments
	}
	if deps.Ledger == nil {
		deps.Ledger = h.ledger
	}
	if deps.Tickets == nil {
		deps.Tickets = h.tickets
	}
	h.orch = NewCheckoutOrchestrator(deps, discardLogger()).(*checkoutOrchestrator)
	return h
}

func (h *harness) seedEvent(t *testing.T, capacity int, basePrice int64) *domain.Event {
	t.Helper()
	now := time.Now()
	ev := domain.NewEvent("organizer-1", "GopherCon", capacity, basePrice, "USD", now.Add(24*time.Hour), now.Add(48*time.Hour), false, now)
	require.NoError(t, h.repos.Events.Create(context.Background(), ev))
	return ev
}

func (h *harness) seedCode(t *testing.T, eventID, code string, typ domain.DiscountType, value float64, limit *int) *domain.DiscountCode {
	t.Helper()
	d := &domain.DiscountCode{EventID: eventID, Code: code, Type: typ, Value: value, UsageLimit: limit, Active: true, CreatedBy: "organizer-1", CreatedAt: time.Now()}
	require.NoError(t, h.repos.Discounts.Create(context.Background(), d))
	return d
}

func billing(token string) domain.BillingInfo {
	return domain.BillingInfo{
		Name:          "Ada Lovelace",
		Email:         "ada@example.com",
		LastFour:      "4242",
		PaymentMethod: "card",
		PaymentToken:  token,
	}
}

func intPtr(n int) *int { return &n }

// outboxTopics drains the outbox and returns the claimed topics in order.
func (h *harness) outboxTopics(t *testing.T) []string {
	t.Helper()
	msgs, err := h.repos.Outbox.Claim(context.Background(), 100, time.Hour)
	require.NoError(t, err)
	topics := make([]string, 0, len(msgs))
	for _, m := range msgs {
		topics = append(topics, m.Topic)
	}
	return topics
}
