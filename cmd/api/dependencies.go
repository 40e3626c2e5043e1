package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	clientauth "github.com/FACorreiaa/rocketstart-api/internal/client/authdata"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/account"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/authdata"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/billing"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/preferences"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/subscription"
	"github.com/FACorreiaa/rocketstart-api/internal/domain/trial"
	"github.com/FACorreiaa/rocketstart-api/internal/identity"
	"github.com/FACorreiaa/rocketstart-api/internal/pricing"
	"github.com/FACorreiaa/rocketstart-api/internal/routeguard"
	"github.com/FACorreiaa/rocketstart-api/internal/tasks"
	"github.com/FACorreiaa/rocketstart-api/internal/types"
	"github.com/FACorreiaa/rocketstart-api/pkg/cache"
	"github.com/FACorreiaa/rocketstart-api/pkg/clock"
	"github.com/FACorreiaa/rocketstart-api/pkg/config"
	"github.com/FACorreiaa/rocketstart-api/pkg/db"
)

const (
	taskTimeout      = 10 * time.Second
	authFetchTimeout = 5 * time.Second
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	sqlDB *sql.DB
	redis *redis.Client

	// Repositories
	AccountRepo      *account.PostgresRepository
	SubscriptionRepo *subscription.RepositoryImpl
	PreferencesRepo  *preferences.RepositoryImpl
	TrialRepo        *trial.RepositoryImpl

	// Infrastructure
	Runner     *tasks.Runner
	Catalogue  *pricing.Catalogue
	Aggregator *clientauth.Aggregator
	Sessions   *identity.SessionStore

	checkouts cache.Store[types.CheckoutRef]
	pending   cache.Store[types.PendingSubscription]
	authCache cache.Store[clientauth.AuthData]
	ledger    cache.Ledger

	// Services
	AccountService      account.Service
	AuthDataService     authdata.Service
	PreferencesService  preferences.Service
	SubscriptionService subscription.Service
	TrialService        trial.Service
	BillingService      *billing.Service

	// Handlers
	AccountHandler      *account.Handler
	AuthDataHandler     *authdata.Handler
	PreferencesHandler  *preferences.Handler
	SubscriptionHandler *subscription.Handler
	TrialHandler        *trial.Handler
	WebhookHandler      *billing.WebhookHandler
	IdentityHandler     *identity.Handler
	PricingHandler      *pricing.Handler
	Guard               *routeguard.Guard
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initCache(); err != nil {
		return nil, fmt.Errorf("failed to init cache: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.sqlDB = d.DB.SQL()
	d.AccountRepo = account.NewPostgresRepository(d.sqlDB, d.Logger)
	d.SubscriptionRepo = subscription.NewRepository(d.DB.Pool, d.Logger)
	d.PreferencesRepo = preferences.NewRepository(d.DB.Pool, d.Logger)
	d.TrialRepo = trial.NewRepository(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
	return nil
}

// initCache picks the process-local or shared backend for the checkout
// correlation maps, the cancel ledger and the auth-data cache.
func (d *Dependencies) initCache() error {
	c := d.Config.Cache
	switch c.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("ping redis %s: %w", c.RedisAddr, err)
		}
		d.redis = client
		d.checkouts = cache.NewRedisStore[types.CheckoutRef](client, "checkout:", c.CheckoutTTL)
		d.pending = cache.NewRedisStore[types.PendingSubscription](client, "pending:", c.CheckoutTTL)
		d.authCache = cache.NewRedisStore[clientauth.AuthData](client, "authdata:", c.AuthDataTTL)
		d.ledger = cache.NewRedisLedger(client, "ledger:", c.LedgerTTL)
	default:
		d.checkouts = cache.NewMemoryStore[types.CheckoutRef]("checkout:", c.CheckoutTTL, clock.System)
		d.pending = cache.NewMemoryStore[types.PendingSubscription]("pending:", c.CheckoutTTL, clock.System)
		d.authCache = cache.NewMemoryStore[clientauth.AuthData]("authdata:", c.AuthDataTTL, clock.System)
		d.ledger = cache.NewMemoryLedger(c.LedgerTTL)
	}

	d.Logger.Info("cache initialized", slog.String("backend", c.Backend))
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	catalogue, err := pricing.Load(pricing.Options{
		File:         d.Config.Pricing.File,
		PriceIDs:     d.Config.Pricing.PriceIDs,
		PaymentLinks: d.Config.Pricing.PaymentLinks,
	})
	if err != nil {
		return err
	}
	d.Catalogue = catalogue

	d.Runner = tasks.NewRunner(d.Logger, d.Config.Cache.Workers, d.Config.Cache.QueueSize, taskTimeout)

	d.AccountService = account.NewService(d.AccountRepo, clock.System, d.Logger)
	d.AuthDataService = authdata.NewService(d.SubscriptionRepo, d.PreferencesRepo, d.AccountRepo, d.Logger)
	d.PreferencesService = preferences.NewService(d.PreferencesRepo, d.AccountRepo, d.Catalogue, d.Logger)
	d.SubscriptionService = subscription.NewService(d.SubscriptionRepo, d.AccountRepo, clock.System, d.Logger)
	d.TrialService = trial.NewService(d.TrialRepo, d.SubscriptionRepo, d.AccountRepo, clock.System, d.Logger)

	fetcher := clientauth.ServiceFetcher(d.AuthDataService, authFetchTimeout)
	if base := d.Config.Cache.AuthDataURL; base != "" {
		fetcher = clientauth.NewHTTPFetcher(base, authFetchTimeout)
	}
	d.Aggregator = clientauth.NewAggregator(d.authCache, fetcher, d.Runner, d.Logger)

	if !d.Config.Billing.Configured() {
		d.Logger.Warn("billing secret key or webhook secret missing; webhook endpoint will answer 500")
	}
	d.BillingService = billing.NewService(billing.ServiceDeps{
		Provider:      billing.NewStripeProvider(d.Config.Billing.SecretKey, d.Logger),
		Subscriptions: d.SubscriptionRepo,
		Preferences:   d.PreferencesRepo,
		Checkouts:     d.checkouts,
		Pending:       d.pending,
		Ledger:        d.ledger,
		AuthData:      d.Aggregator,
		Clock:         clock.System,
		Logger:        d.Logger,
	})

	if d.Config.Identity.JWTSecret == "" {
		d.Logger.Warn("identity JWT secret is empty; every session will be treated as signed out")
	}
	verifier := identity.NewVerifier(d.Config.Identity.JWTSecret)
	d.Sessions = identity.NewSessionStore(identity.SessionOptions{
		Name:   d.Config.Identity.SessionName,
		Secret: d.Config.Identity.SessionSecret,
		Secure: d.Config.Identity.SecureCookies,
	}, verifier)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.AccountHandler = account.NewHandler(d.AccountService, d.Logger)
	d.AuthDataHandler = authdata.NewHandler(d.AuthDataService, d.Logger)
	d.PreferencesHandler = preferences.NewHandler(d.PreferencesService, d.Logger)
	d.SubscriptionHandler = subscription.NewHandler(d.SubscriptionService, d.Logger)
	d.TrialHandler = trial.NewHandler(d.TrialService, d.Logger)
	d.WebhookHandler = billing.NewWebhookHandler(d.BillingService, d.Config.Billing.WebhookSecret, d.Config.Billing.Configured(), d.Logger)
	d.PricingHandler = pricing.NewHandler(d.Catalogue, d.Logger)

	exchanger := identity.NewExchanger(d.Config.Identity.ProjectURL, d.Config.Identity.AnonKey, authFetchTimeout)
	d.IdentityHandler = identity.NewHandler(exchanger, d.Sessions, d.Aggregator, d.PreferencesRepo, d.Config.Server.AppURL, d.Logger)
	d.Guard = routeguard.New(d.Sessions, d.Aggregator, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup drains background work and closes all resources
func (d *Dependencies) Cleanup(ctx context.Context) {
	if d.Runner != nil {
		if err := d.Runner.Shutdown(ctx); err != nil {
			d.Logger.Warn("task runner did not drain", slog.Any("error", err))
		}
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.sqlDB != nil {
		_ = d.sqlDB.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
