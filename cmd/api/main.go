// Command api serves the Smart Events checkout API.
//
// @title Smart Events API
// @version 1.0
// @description Event registration and checkout: discount codes, payments, registrations and tickets.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartevents/config"
	_ "smartevents/docs"
	"smartevents/internal/adapters/auth"
	"smartevents/internal/adapters/email"
	"smartevents/internal/adapters/messaging"
	"smartevents/internal/adapters/payment"
	deliveryhttp "smartevents/internal/delivery/http"
	"smartevents/internal/delivery/http/controllers"
	"smartevents/internal/delivery/http/middleware"
	"smartevents/internal/domain"
	"smartevents/internal/repository/memory"
	"smartevents/internal/repository/postgres"
	"smartevents/internal/retry"
	"smartevents/internal/services"

	"github.com/redis/go-redis/v9"
)

const (
	serviceTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// repositories is the storage a driver provides.
type repositories struct {
	events        domain.EventRepository
	discounts     domain.DiscountCodeRepository
	registrations domain.EventRegistrationRepository
	payments      domain.PaymentRepository
	tickets       domain.TicketRepository
	checkouts     domain.CheckoutRepository
	outbox        domain.OutboxRepository
}

func main() {
	logger := config.NewLogger(os.Stdout)
	if err := run(logger); err != nil {
		logger.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	emailSvc := services.NewEmailService(mailer, renderer, logger)

	discounts := services.NewDiscountResolver(repos.events, repos.discounts)
	payments := services.NewPaymentProcessor(repos.payments, gateway, services.PaymentConfig{
		AcceptedCurrencies: cfg.AcceptedCurrencies,
		Timeout:            cfg.PaymentTimeout,
	}, logger)
	ledger := services.NewRegistrationLedger(repos.events, repos.registrations, repos.outbox, logger)
	tickets := services.NewTicketIssuer(repos.tickets)
	orchestrator := services.NewCheckoutOrchestrator(services.CheckoutDeps{
		Events:      repos.events,
		Checkouts:   repos.checkouts,
		Discounts:   discounts,
		Payments:    payments,
		Ledger:      ledger,
		Tickets:     tickets,
		Outbox:      repos.outbox,
		Email:       emailSvc,
		RefundRetry: retry.DefaultConfig(),
	}, logger)
	events := services.NewEventService(repos.events, repos.discounts, repos.payments, serviceTimeout)

	services.NewReconciler(repos.payments, payments, repos.checkouts, orchestrator, services.ReconcilerConfig{
		Interval: cfg.ReconcileInterval,
		Grace:    cfg.ReconcileGrace,
	}, logger).Start(ctx)
	messaging.NewOutboxDispatcher(repos.outbox, publisher, messaging.DispatcherConfig{
		Interval: cfg.OutboxInterval,
	}, logger).Start(ctx)

	var idempotent deliveryhttp.Middleware
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, idempotency keys fail open", "err", err)
		}
		idempotent = middleware.Idempotency(middleware.IdempotencyConfig{
			Redis:  rdb,
			TTL:    cfg.IdempotencyTTL,
			Logger: logger,
		})
	}

	router := deliveryhttp.NewRouter(deliveryhttp.Handlers{
		Checkout:     controllers.NewCheckoutController(logger, orchestrator),
		Registration: controllers.NewRegistrationController(logger, ledger),
		Event:        controllers.NewEventController(logger, events, discounts),
		Me:           controllers.NewMeController(logger, tickets, payments),
	}, middleware.RequireAuth(auth.NewJWTVerifier(cfg.JWTSecret), logger), idempotent)

	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.CORSAllowedOrigins, router))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Leaves room for the payment timeout plus compensation.
		WriteTimeout: cfg.PaymentTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "storage", cfg.StorageDriver, "gateway", gateway.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repositories, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		r := memory.NewStore().Repositories()
		return &repositories{
			events:        r.Events,
			discounts:     r.Discounts,
			registrations: r.Registrations,
			payments:      r.Payments,
			tickets:       r.Tickets,
			checkouts:     r.Checkouts,
			outbox:        r.Outbox,
		}, func() {}, nil
	case config.StoragePostgres:
		db, err := postgres.Open(ctx, cfg.DBUrl)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return postgresRepositories(db), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
}

func postgresRepositories(db *sql.DB) *repositories {
	return &repositories{
		events:        postgres.NewEventRepository(db),
		discounts:     postgres.NewDiscountCodeRepository(db),
		registrations: postgres.NewEventRegistrationRepository(db),
		payments:      postgres.NewPaymentRepository(db),
		tickets:       postgres.NewTicketRepository(db),
		checkouts:     postgres.NewCheckoutRepository(db),
		outbox:        postgres.NewOutboxRepository(db),
	}
}

func newGateway(cfg *config.Config) (domain.PaymentGateway, error) {
	switch cfg.PaymentGateway {
	case config.GatewayMock:
		return payment.NewMockGateway(payment.MockGatewayConfig{}), nil
	case config.GatewayStripe:
		gw, err := payment.NewStripeGateway(payment.StripeGatewayConfig{SecretKey: cfg.StripeSecretKey})
		if err != nil {
			return nil, fmt.Errorf("create stripe gateway: %w", err)
		}
		return gw, nil
	}
	return nil, fmt.Errorf("unknown PAYMENT_GATEWAY %q", cfg.PaymentGateway)
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (domain.EventPublisher, func(), error) {
	switch cfg.EventPublisher {
	case config.PublisherNoop:
		return messaging.NewNoopPublisher(logger), func() {}, nil
	case config.PublisherRabbitMQ:
		p, err := messaging.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown EVENT_PUBLISHER %q", cfg.EventPublisher)
}
