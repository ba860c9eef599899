package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/crypto"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/discount"
	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/handlers"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/pricing"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
	"github.com/gitshopapp/storefront/internal/stripe"
)

const emailTimeout = 30 * time.Second

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	Handlers       *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sentryEnabled, err := initSentry(cfg)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(os.Stdout, logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Breadcrumbs: sentryEnabled,
	})

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(startupCtx, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	catalogStore := db.NewCatalogStore(database)
	if cfg.CatalogPath != "" {
		syncer := catalog.NewSyncer(catalogStore, logger.With("component", "catalog_syncer"))
		result, err := syncer.SyncFile(startupCtx, cfg.CatalogPath)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to sync catalog: %w", err)
		}
		logger.Info("catalog synced",
			"path", cfg.CatalogPath,
			"skus", result.SKUs,
			"price_changes", result.PriceChanges,
			"shipping_methods", result.ShippingMethods,
			"discount_codes", result.DiscountCodes,
		)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	sessionStore, err := session.NewStore(startupCtx, session.Config{
		Provider:              cfg.SessionStoreProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		database.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	sessionManager := session.NewManager(sessionStore, cfg.SecureCookies())

	cleanup := func() {
		closeSessionManager(logger, sessionManager)
		closeCacheProvider(logger, cacheProvider)
		database.Close()
	}

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize sealer: %w", err)
	}
	orderStore, err := db.NewOrderStore(database, sealer)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize order store: %w", err)
	}
	cartStore := db.NewCartStore(database)

	verifier, err := auth.NewVerifier(cfg.MemberTokenSecret)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize member token verifier: %w", err)
	}

	networks, err := cfg.CheckoutNetworks()
	if err != nil {
		cleanup()
		return nil, err
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider:   cfg.EmailProvider,
		APIKey:     cfg.EmailAPIKey,
		From:       cfg.EmailFrom,
		Domain:     cfg.EmailDomain,
		HTTPClient: observability.NewHTTPClient(emailTimeout),
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	notifier, err := services.NewOrderEmailNotifier(emailProvider, services.ShopInfo{Name: cfg.ShopName, URL: cfg.BaseURL})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize order notifier: %w", err)
	}
	if emailProvider == nil {
		logger.Info("order confirmation email disabled")
	}

	engine := discount.NewEngine(pricing.NewSnapshot(catalogStore, time.Now))
	stripeClient := stripe.NewClient(cfg.StripeSecretKey, cfg.StripeTimeout)

	cartService := services.NewCartService(cartStore, catalogStore, engine, logger.With("component", "cart_service"))
	checkoutService := services.NewCheckoutService(cartStore, catalogStore, engine, stripeClient, services.CheckoutConfig{
		BaseURL:     cfg.BaseURL,
		SuccessPath: cfg.CheckoutSuccessPath,
		CancelPath:  cfg.CheckoutCancelPath,
		Policy: services.CheckoutPolicy{
			MembersOnly:     cfg.CheckoutMembersOnly,
			AllowedNetworks: networks,
		},
	}, logger.With("component", "checkout_service"))
	orderService := services.NewOrderService(orderStore, logger.With("component", "order_service"))
	reconciler := services.NewWebhookReconciler(
		cartStore,
		orderStore,
		catalogStore,
		engine,
		stripeClient,
		notifier,
		logger.With("component", "webhook_reconciler"),
	)
	stripeRouter := handlers.NewStripeEventRouter(reconciler, logger.With("component", "stripe_router"))

	h, err := handlers.New(handlers.Dependencies{
		Config:          cfg,
		DB:              database,
		CartService:     cartService,
		CheckoutService: checkoutService,
		OrderService:    orderService,
		StripeRouter:    stripeRouter,
		WebhookEvents:   cache.NewEventLedger(cacheProvider, "stripe", cache.DefaultEventTTL),
		Members:         verifier,
		SessionManager:  sessionManager,
		Logger:          logger,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:         cfg,
		Logger:         logger,
		DB:             database,
		CacheProvider:  cacheProvider,
		SessionManager: sessionManager,
		Handlers:       h,
	}, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.SessionManager != nil {
		closeSessionManager(a.Logger, a.SessionManager)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

// initSentry reports whether tracing and metrics are enabled.
func initSentry(cfg *config.Config) (bool, error) {
	if cfg.SentryDSN == "" {
		return false, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	}); err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

func closeSessionManager(logger *slog.Logger, manager *session.Manager) {
	if manager == nil {
		return
	}
	if err := manager.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session manager", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
