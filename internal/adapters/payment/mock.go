// Package payment holds the PaymentGateway implementations.
package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"smartevents/internal/domain"

	"github.com/google/uuid"
)

// Mock payment tokens with a fixed outcome. Any other token is charged successfully.
const (
	TokenDecline = "tok_decline"
	// TokenTimeout blocks until the context is done.
	TokenTimeout = "tok_timeout"
	// TokenError simulates the gateway being unreachable.
	TokenError = "tok_error"
	// TokenCaptureThenHang captures the money and then blocks until the
	// context is done, like a response lost after the gateway charged.
	TokenCaptureThenHang = "tok_capture_then_hang"
)

// MockGatewayConfig holds configuration for the mock gateway.
type MockGatewayConfig struct {
	// Delay is the simulated processing time of every call.
	Delay time.Duration
}

type mockTxn struct {
	amount   int64
	refunded bool
}

// MockGateway is a deterministic in-process gateway for development and tests.
type MockGateway struct {
	cfg MockGatewayConfig

	mu        sync.Mutex
	txns      map[string]*mockTxn
	byPayment map[string]string
	charges   int
	refunds   int
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway(cfg MockGatewayConfig) *MockGateway {
	return &MockGateway{cfg: cfg, txns: make(map[string]*mockTxn), byPayment: make(map[string]string)}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) wait(ctx context.Context) error {
	if g.cfg.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.cfg.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Charge is idempotent per PaymentID: a repeated request returns the first capture.
func (g *MockGateway) Charge(ctx context.Context, req *domain.GatewayCharge) (*domain.GatewayResult, error) {
	if req == nil {
		return nil, fmt.Errorf("charge request is required")
	}
	g.mu.Lock()
	g.charges++
	g.mu.Unlock()

	switch strings.ToLower(req.PaymentToken) {
	case TokenTimeout:
		<-ctx.Done()
		return nil, ctx.Err()
	case TokenError:
		return nil, fmt.Errorf("mock gateway unavailable")
	case TokenCaptureThenHang:
		g.capture(req)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if strings.EqualFold(req.PaymentToken, TokenDecline) {
		return &domain.GatewayResult{Success: false, FailureCode: "card_declined", FailureReason: "Your card was declined."}, nil
	}
	return &domain.GatewayResult{Success: true, TransactionID: g.capture(req)}, nil
}

func (g *MockGateway) capture(req *domain.GatewayCharge) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byPayment[req.PaymentID]; ok && req.PaymentID != "" {
		return id
	}
	txnID := "mock_txn_" + uuid.NewString()[:8]
	g.txns[txnID] = &mockTxn{amount: req.Amount}
	if req.PaymentID != "" {
		g.byPayment[req.PaymentID] = txnID
	}
	return txnID
}

func (g *MockGateway) Lookup(ctx context.Context, paymentID string) (*domain.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	txnID, ok := g.byPayment[paymentID]
	if !ok || paymentID == "" {
		return nil, domain.ErrNotFound
	}
	return &domain.GatewayResult{Success: true, TransactionID: txnID}, nil
}

// Refund is idempotent for a transaction that was already refunded.
func (g *MockGateway) Refund(ctx context.Context, transactionID string, amount int64) error {
	if transactionID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if err := g.wait(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	txn, ok := g.txns[transactionID]
	if !ok {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}
	if amount > txn.amount {
		return fmt.Errorf("refund amount %d exceeds charge %d", amount, txn.amount)
	}
	if !txn.refunded {
		txn.refunded = true
		g.refunds++
	}
	return nil
}

// Charges returns the number of Charge calls received.
func (g *MockGateway) Charges() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

// Refunds returns the number of transactions refunded.
func (g *MockGateway) Refunds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds
}

// Outstanding returns the number of successful charges not refunded.
func (g *MockGateway) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, t := range g.txns {
		if !t.refunded {
			n++
		}
	}
	return n
}
