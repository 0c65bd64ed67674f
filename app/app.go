package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paycartapp/paycart/internal/cache"
	"github.com/paycartapp/paycart/internal/catalog"
	"github.com/paycartapp/paycart/internal/config"
	"github.com/paycartapp/paycart/internal/currency"
	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/discount"
	"github.com/paycartapp/paycart/internal/email"
	"github.com/paycartapp/paycart/internal/handlers"
	"github.com/paycartapp/paycart/internal/logging"
	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/payments"
	"github.com/paycartapp/paycart/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := initSentry(cfg); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(startupCtx, database); err != nil {
		database.Close()
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

	gateways := buildGateways(cfg)

	fallbackRates := currency.DefaultFallbackRates()
	if cfg.FallbackRatesPath != "" {
		fallbackRates, err = currency.LoadFallbackRates(cfg.FallbackRatesPath)
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to load fallback exchange rates: %w", err)
		}
	}
	converter := currency.NewConverter(currency.Config{
		APIURL:   cfg.ExchangeRateAPIURL,
		TTL:      cfg.ExchangeRateTTL,
		Fallback: fallbackRates,
		Logger:   logger.With("component", "currency"),
	})

	orderStore := db.NewOrderStore(database)
	productStore := db.NewProductStore(database)
	discountStore := db.NewDiscountStore(database)
	orphanStore := db.NewOrphanStore(database)

	if cfg.SeedCatalogPath != "" {
		seed, err := catalog.Load(cfg.SeedCatalogPath)
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to load seed catalog: %w", err)
		}
		if err := productStore.Upsert(startupCtx, seed); err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to seed product catalog: %w", err)
		}
		logger.Info("seeded product catalog", "path", cfg.SeedCatalogPath, "products", len(seed))
	}

	discountValidator := discount.NewValidator(discountStore)

	var notifier services.Notifier
	if cfg.EmailProvider != "" && cfg.EmailProvider != "noop" {
		emailProvider, err := email.NewProvider(email.Config{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("failed to initialize email provider: %w", err)
		}
		if err := emailProvider.ValidateAPIKey(startupCtx); err != nil {
			closeCacheProvider(logger, cacheProvider)
			database.Close()
			return nil, fmt.Errorf("email provider rejected credentials: %w", err)
		}
		notifier = services.NewEmailNotifier(emailProvider, logger.With("component", "notifier"))
	}

	orderService := services.NewOrderService(
		orderStore,
		productStore,
		discountValidator,
		converter,
		orphanStore,
		gateways,
		notifier,
		services.OrderServiceConfig{
			BaseCurrency:        cfg.BaseCurrency,
			SupportedCurrencies: cfg.SupportedCurrencies,
		},
		logger.With("component", "order_service"),
	)
	paymentService := services.NewPaymentService(orderStore, gateways, notifier, logger.With("component", "payment_service"))
	webhookProcessor := services.NewWebhookProcessor(orderStore, notifier, logger.With("component", "webhook_processor"))

	h, err := handlers.New(handlers.Dependencies{
		Config:           cfg,
		DB:               database,
		CacheProvider:    cacheProvider,
		OrderService:     orderService,
		PaymentService:   paymentService,
		WebhookProcessor: webhookProcessor,
		OrphanStore:      orphanStore,
		Converter:        converter,
		Gateways:         gateways,
		Logger:           logger,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            database,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func buildGateways(cfg *config.Config) map[models.PaymentProvider]payments.Gateway {
	gateways := map[models.PaymentProvider]payments.Gateway{
		models.ProviderStripe: payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
	}

	if cfg.PayPalEnabled() {
		gateways[models.ProviderPayPal] = payments.NewPayPalGateway(
			cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalWebhookID)
	}

	return gateways
}

func initSentry(cfg *config.Config) error {
	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		EnableLogs:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var base slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		base = slog.NewJSONHandler(os.Stdout, opts)
	default:
		base = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}

	if strings.TrimSpace(cfg.SentryDSN) == "" {
		return slog.New(base)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())
	return slog.New(logging.MultiHandler(base, sentryHandler))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
