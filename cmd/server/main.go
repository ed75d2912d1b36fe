package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/emporium/internal"
	"github.com/dukerupert/emporium/internal/billing"
	"github.com/dukerupert/emporium/internal/domain"
	"github.com/dukerupert/emporium/internal/email"
	"github.com/dukerupert/emporium/internal/events"
	"github.com/dukerupert/emporium/internal/handler/api"
	"github.com/dukerupert/emporium/internal/handler/webhook"
	"github.com/dukerupert/emporium/internal/inventory"
	"github.com/dukerupert/emporium/internal/jobs"
	"github.com/dukerupert/emporium/internal/memstore"
	"github.com/dukerupert/emporium/internal/middleware"
	"github.com/dukerupert/emporium/internal/postgres"
	"github.com/dukerupert/emporium/internal/pricing"
	"github.com/dukerupert/emporium/internal/router"
	"github.com/dukerupert/emporium/internal/routes"
	"github.com/dukerupert/emporium/internal/service"
	"github.com/dukerupert/emporium/internal/telemetry"
	"github.com/dukerupert/emporium/internal/worker"
)

const metricsNamespace = "emporium"

// stores bundles the persistence layer for the selected driver.
type stores struct {
	products domain.ProductStore
	stock    inventory.StockStore
	orders   domain.OrderStore
	carts    domain.CartStore
	queue    jobs.Queue
	ping     func(ctx context.Context) error
	close    func()
}

func openStores(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory stores; data is lost on restart")
		products := memstore.NewProductStore()
		return &stores{
			products: products,
			stock:    products,
			orders:   memstore.NewOrderStore(),
			carts:    memstore.NewCartStore(),
			queue:    memstore.NewJobQueue(),
			close:    func() {},
		}, nil
	}

	logger.Info("Connecting to database...")
	pool, err := postgres.Connect(ctx, cfg.DatabaseUrl, 0)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	logger.Info("Database connection established")

	logger.Info("Running database migrations...")
	if err := migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Database migrations completed successfully")

	products := postgres.NewProductStore(pool)
	return &stores{
		products: products,
		stock:    products,
		orders:   postgres.NewOrderStore(pool),
		carts:    postgres.NewCartStore(pool),
		queue:    postgres.NewJobQueue(pool),
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	if err := internal.RunMigrations(ctx, sqlDB, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func run() error {
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return err
	}
	defer flushSentry()

	// ==========================================================================
	// Metrics
	// ==========================================================================

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics(metricsNamespace, registry)
	businessMetrics := telemetry.NewBusinessMetrics(metricsNamespace, registry)

	// ==========================================================================
	// Infrastructure
	// ==========================================================================

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	policy, err := pricing.NewPolicy(cfg.Pricing.TaxRate, cfg.Pricing.FreeShippingThreshold, cfg.Pricing.FlatShipping)
	if err != nil {
		return fmt.Errorf("invalid pricing policy: %w", err)
	}

	var billingProvider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		stripeConfig := billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			MaxRetries:    3,
		}
		provider, err := billing.NewStripeProvider(stripeConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		billingProvider = provider
		logger.Info("Stripe billing provider initialized", "mode", stripeConfig.Mode())
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; card payments disabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		publisher = natsPublisher
		logger.Info("Publishing order events to NATS", "subject_prefix", cfg.NATS.SubjectPrefix)
	}
	defer publisher.Close()

	var mailer jobs.Mailer
	if cfg.Email.Host != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize SMTP sender: %w", err)
		}
		emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
		if err != nil {
			return fmt.Errorf("failed to initialize email service: %w", err)
		}
		mailer = emailService
	} else {
		logger.Warn("SMTP_HOST not set; order emails are skipped")
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Products:  st.products,
		Stock:     st.stock,
		Orders:    st.orders,
		Carts:     st.carts,
		Queue:     st.queue,
		Publisher: publisher,
		Metrics:   businessMetrics,
		Policy:    policy,
		Timeout:   cfg.Checkout.Timeout,
		Logger:    logger,
	})
	orderService := service.NewOrderService(st.orders, st.queue, publisher, businessMetrics, logger)
	paymentService := service.NewPaymentService(service.PaymentDeps{
		Orders:         st.orders,
		Provider:       billingProvider,
		Queue:          st.queue,
		Publisher:      publisher,
		Metrics:        businessMetrics,
		Currency:       cfg.Stripe.Currency,
		PublishableKey: cfg.Stripe.PublishableKey,
		Logger:         logger,
	})

	// ==========================================================================
	// Background worker
	// ==========================================================================

	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		w := worker.NewWorker(
			st.queue,
			jobs.NewProcessor(st.carts, st.orders, mailer, logger),
			businessMetrics,
			worker.Config{
				PollInterval:   cfg.Worker.PollInterval,
				MaxConcurrency: cfg.Worker.MaxConcurrency,
			},
			logger,
		)
		go func() {
			defer close(workerDone)
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker stopped", "error", err)
			}
		}()
	} else {
		close(workerDone)
	}

	// ==========================================================================
	// HTTP
	// ==========================================================================

	checkoutLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.HTTP.CheckoutRPS,
		BurstSize:         cfg.HTTP.CheckoutBurst,
		CleanupInterval:   time.Minute,
		KeyFunc:           middleware.CallerKey,
	})

	r := router.New(
		telemetry.SentryMiddleware(),
		router.Recovery(logger),
		middleware.RequestID,
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.APISecurityHeadersConfig(cfg.Env == "prod")),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		middleware.Identity,
		telemetry.SentryContextMiddleware(sentryScope),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Ping:    st.ping,
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		Orders:          api.NewOrderHandler(checkoutService, orderService, paymentService),
		Payments:        api.NewPaymentHandler(paymentService),
		CheckoutLimiter: checkoutLimiter,
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(paymentService).HandleWebhook,
	})
	logger.Debug("Routes registered", "routes", r.Routes())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		// CORS wraps the mux so preflight requests never hit method matching.
		Handler:           router.CORS(router.DefaultCORSConfig(cfg.HTTP.AllowedOrigins...))(r),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	<-workerDone

	return nil
}

func sentryScope(ctx context.Context) telemetry.RequestScope {
	s := telemetry.RequestScope{RequestID: domain.RequestIDFromContext(ctx)}
	if u := domain.UserFromContext(ctx); u != nil {
		s.UserID = u.ID.String()
		s.Email = u.Email
		s.Admin = u.IsAdmin()
	}
	return s
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
