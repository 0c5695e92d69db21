package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/exstoreapp/exstore/internal/auth"
	"github.com/exstoreapp/exstore/internal/cache"
	"github.com/exstoreapp/exstore/internal/config"
	"github.com/exstoreapp/exstore/internal/db"
	"github.com/exstoreapp/exstore/internal/email"
	"github.com/exstoreapp/exstore/internal/events"
	"github.com/exstoreapp/exstore/internal/handlers"
	"github.com/exstoreapp/exstore/internal/notify"
	"github.com/exstoreapp/exstore/internal/payment"
	"github.com/exstoreapp/exstore/internal/services"
	"github.com/exstoreapp/exstore/internal/shipping"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Dispatcher    *notify.Dispatcher
	Producer      *events.Producer
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			logger.Warn("failed to initialize sentry", "error", err)
		}
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	methods, err := shipping.Load(cfg.ShippingConfigPath)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to load shipping methods: %w", err)
	}

	var emailProvider email.Provider
	if cfg.EmailEnabled() {
		emailProvider, err = email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
			Domain:   cfg.MailgunDomain,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
	}

	var producer *events.Producer
	if cfg.KafkaEnabled() {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
	}

	dispatcher := notify.NewDispatcher(emailProvider, publisherOrNil(producer), cfg.StoreName)

	gateway := newGateway(cfg)

	orderStore := db.NewOrderStore(database)
	userStore := db.NewUserStore(database)

	orderService, err := services.NewOrderService(
		orderStore,
		userStore,
		gateway,
		methods,
		dispatcher,
		cacheProvider,
		logger.With("component", "order_service"),
	)
	if err != nil {
		closeProducer(logger, producer)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize order service: %w", err)
	}

	h, err := handlers.New(handlers.Dependencies{
		Config:   cfg,
		DB:       database,
		Orders:   orderService,
		Verifier: verifier,
		Logger:   logger,
	})
	if err != nil {
		closeProducer(logger, producer)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Dispatcher:    dispatcher,
		Producer:      producer,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if a.Producer != nil {
		closeProducer(a.Logger, a.Producer)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func newGateway(cfg *config.Config) payment.Gateway {
	if cfg.PaymentProvider == "stripe" {
		return payment.NewStripeGateway(cfg.StripeSecretKey)
	}
	return payment.NewSimulatedGateway(payment.WithSuccessRate(cfg.PaymentSuccessRate))
}

// publisherOrNil avoids handing the dispatcher a typed-nil interface.
func publisherOrNil(producer *events.Producer) events.Publisher {
	if producer == nil {
		return nil
	}
	return producer
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	case "text", "":
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel}))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}

func closeProducer(logger *slog.Logger, producer *events.Producer) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil && logger != nil {
		logger.Warn("failed to close event producer", "error", err)
	}
}
