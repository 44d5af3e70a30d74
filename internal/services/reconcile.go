package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"smartevents/internal/domain"
)

// ReconcilerConfig tunes the reconciliation sweep.
type ReconcilerConfig struct {
	Interval time.Duration
	// Grace is how old a payment must be before the sweep touches it, so
	// in-flight checkouts are left alone.
	Grace     time.Duration
	BatchSize int
}

type Reconciler struct {
	payments     domain.PaymentRepository
	processor    domain.PaymentProcessor
	checkouts    domain.CheckoutRepository
	orchestrator domain.CheckoutOrchestrator
	cfg          ReconcilerConfig
	now          func() time.Time
	logger       *slog.Logger
}

// NewReconciler returns the sweep that completes or refunds payments left
// behind by interrupted checkouts.
func NewReconciler(
	payments domain.PaymentRepository,
	processor domain.PaymentProcessor,
	checkouts domain.CheckoutRepository,
	orchestrator domain.CheckoutOrchestrator,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reconciler{
		payments:     payments,
		processor:    processor,
		checkouts:    checkouts,
		orchestrator: orchestrator,
		cfg:          cfg,
		now:          time.Now,
		logger:       logger,
	}
}

// Start runs RunOnce on a ticker until ctx is done.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			report, err := r.RunOnce(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "reconcile sweep failed", "err", err)
				continue
			}
			if report.Completed+report.Refunded+report.FailedPending+report.Errors > 0 {
				r.logger.InfoContext(ctx, "reconcile sweep",
					"completed", report.Completed,
					"refunded", report.Refunded,
					"failed_pending", report.FailedPending,
					"errors", report.Errors)
			}
		}
	}()
}

// stuckStates are the post-charge states a running checkout passes through
// within one request.
var stuckStates = []domain.CheckoutState{
	domain.CheckoutCharging,
	domain.CheckoutCharged,
	domain.CheckoutRegistered,
	domain.CheckoutTicketIssued,
}

// RunOnce settles pending payments with the gateway, then recovers completed
// payments without a ticket and checkouts stuck after the charge.
func (r *Reconciler) RunOnce(ctx context.Context) (*domain.ReconcileReport, error) {
	cutoff := r.now().Add(-r.cfg.Grace)
	report := &domain.ReconcileReport{}

	stale, err := r.payments.ListStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		settled, err := r.processor.Settle(ctx, p.ID)
		if err != nil {
			report.Errors++
			r.logger.ErrorContext(ctx, "settle stale payment", "payment_id", p.ID, "err", err)
			continue
		}
		if settled.Status != domain.PaymentFailed {
			// A capture; the orphan pass below finishes or refunds it.
			continue
		}
		report.FailedPending++
		if p.CheckoutID != "" {
			err := r.checkouts.Transition(ctx, p.CheckoutID, []domain.CheckoutState{domain.CheckoutCharging}, domain.CheckoutDeclined, r.now())
			if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				r.logger.WarnContext(ctx, "decline stale checkout", "checkout_id", p.CheckoutID, "err", err)
			}
		}
	}

	seen := make(map[string]bool)
	orphans, err := r.payments.ListOrphaned(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, p := range orphans {
		seen[p.CheckoutID] = true
		r.recover(ctx, p, report)
	}

	stuck, err := r.checkouts.ListStuck(ctx, stuckStates, cutoff, r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	for _, c := range stuck {
		if seen[c.ID] || c.PaymentID == "" {
			continue
		}
		p, err := r.processor.Get(ctx, c.PaymentID)
		if err != nil {
			report.Errors++
			r.logger.ErrorContext(ctx, "load stuck checkout payment", "checkout_id", c.ID, "payment_id", c.PaymentID, "err", err)
			continue
		}
		if p.Status != domain.PaymentCompleted {
			continue
		}
		r.recover(ctx, p, report)
	}
	return report, nil
}

func (r *Reconciler) recover(ctx context.Context, p *domain.Payment, report *domain.ReconcileReport) {
	c, err := r.orchestrator.Recover(ctx, p)
	if err != nil {
		report.Errors++
		r.logger.ErrorContext(ctx, "recover payment", "payment_id", p.ID, "checkout_id", p.CheckoutID, "err", err)
		return
	}
	if c.State == domain.CheckoutComplete {
		report.Completed++
	} else {
		report.Refunded++
	}
}
