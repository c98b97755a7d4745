package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/config"
	"github.com/upb/llm-compare/handlers"
	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
	"github.com/upb/llm-compare/repositories/cache"
	"github.com/upb/llm-compare/repositories/memory"
	"github.com/upb/llm-compare/repositories/postgres"
	"github.com/upb/llm-compare/repositories/sqlite"
	"github.com/upb/llm-compare/services/audit"
	"github.com/upb/llm-compare/services/credentials"
	"github.com/upb/llm-compare/services/dispatch"
	"github.com/upb/llm-compare/services/experiment"
	"github.com/upb/llm-compare/services/metrics"
	"github.com/upb/llm-compare/services/providers"
	"github.com/upb/llm-compare/services/providers/anthropic"
	"github.com/upb/llm-compare/services/providers/gemini"
	"github.com/upb/llm-compare/services/providers/openai"
)

const (
	// auditStopTimeout bounds how long Close waits for queued dispatch records
	auditStopTimeout = 10 * time.Second

	// historyCacheCleanupInterval is how often expired cached histories are dropped
	historyCacheCleanupInterval = time.Minute
)

// storageBackend is what every repository factory offers besides its repositories
type storageBackend interface {
	NewRepositories() *repositories.Repositories
	HealthCheck(ctx context.Context) error
	Close() error
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Storage; nil when running on the in-memory store
	Storage storageBackend

	// Repositories
	Repositories *repositories.Repositories
	HistoryCache *cache.HistoryRepository // nil when disabled or on the memory store

	// Provider Registry
	ProviderRegistry *providers.Registry

	// Services
	Credentials *credentials.CredentialService
	Ledger      *metrics.Ledger
	Prices      *metrics.PriceTable
	Experiment  experiment.Processor
	Audit       *audit.AuditService
	Dispatch    *dispatch.DispatchService

	// Handlers
	ChatHandler        *handlers.ChatHandler
	MetricsHandler     *handlers.MetricsHandler
	CredentialsHandler *handlers.CredentialsHandler
	RecordsHandler     *handlers.RecordsHandler
	HealthHandler      *handlers.HealthHandler

	stopWorkers context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Int("providers", deps.ProviderRegistry.GetProviderCount()))
	return deps, nil
}

// initStorage opens the configured backend and builds its repositories
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		factory, err := postgres.NewRepositoryFactory(ctx, cfg.Storage.Database, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create postgres repository factory: %w", err)
		}
		if err := factory.HealthCheck(ctx); err != nil {
			factory.Close()
			return fmt.Errorf("database ping failed: %w", err)
		}
		d.Storage = factory
		d.Logger.Info("database connection established",
			zap.String("connection", cfg.Storage.Database.LogString()))

	case config.StorageDriverSQLite:
		factory, err := sqlite.NewRepositoryFactory(ctx, cfg.Storage.SQLitePath, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create sqlite repository factory: %w", err)
		}
		d.Storage = factory
		d.Logger.Info("sqlite database opened", zap.String("path", cfg.Storage.SQLitePath))

	case config.StorageDriverMemory:
		d.Repositories = memory.NewRepositories()
		d.Logger.Warn("using in-memory storage, history is lost on restart")
		return nil

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	d.Repositories = d.Storage.NewRepositories()

	if size := cfg.Storage.HistoryCacheSize; size > 0 {
		d.HistoryCache = cache.NewHistoryRepository(d.Repositories.History, size, cfg.Storage.HistoryCacheTTL, d.Logger)
		d.Repositories.History = d.HistoryCache

		workerCtx, cancel := context.WithCancel(context.Background())
		d.stopWorkers = cancel
		go d.HistoryCache.StartCleanupWorker(workerCtx, historyCacheCleanupInterval)

		d.Logger.Info("history cache enabled",
			zap.Int("max_users", size),
			zap.Duration("ttl", cfg.Storage.HistoryCacheTTL))
	}
	return nil
}

// initProviders registers an adapter for every known provider.
// Adapters are registered even without a default key since callers may supply one.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	settings := cfg.Providers.All()

	builder := providers.NewRegistryBuilder().
		WithProviderBuilder(models.ProviderOpenAI, func(c providers.ProviderConfig) (providers.Provider, error) {
			return openai.NewOpenAIAdapter(c), nil
		}).
		WithProviderBuilder(models.ProviderGrok, func(c providers.ProviderConfig) (providers.Provider, error) {
			return openai.NewGrokAdapter(c), nil
		}).
		WithProviderBuilder(models.ProviderGemini, func(c providers.ProviderConfig) (providers.Provider, error) {
			return gemini.NewAdapter(c), nil
		}).
		WithProviderBuilder(models.ProviderAnthropic, func(c providers.ProviderConfig) (providers.Provider, error) {
			return anthropic.NewAdapter(c), nil
		}).
		WithDecorator(func(p providers.Provider) providers.Provider {
			s := settings[p.ID()]
			if s.RequestsPerSecond <= 0 {
				return p
			}
			return providers.NewThrottled(p, s.RequestsPerSecond, s.Burst)
		})

	configs := make(map[models.ProviderID]providers.ProviderConfig, len(settings))
	for id, s := range settings {
		configs[id] = providers.ProviderConfig{
			BaseURL:      s.BaseURL,
			DefaultModel: s.DefaultModel,
			Timeout:      s.Timeout,
			MaxRetries:   s.MaxRetries,
		}
	}

	registry, err := builder.Build(configs)
	if err != nil {
		return err
	}

	for _, id := range registry.ListProviders() {
		d.Logger.Info("provider registered",
			zap.String("provider", string(id)),
			zap.Bool("default_key", settings[id].APIKey != ""),
			zap.Float64("requests_per_second", settings[id].RequestsPerSecond))
	}

	d.ProviderRegistry = registry
	return nil
}

// initServices builds the credential, metrics, experiment, audit and dispatch services
func (d *Dependencies) initServices(cfg *config.Config) error {
	env := make(providers.DefaultCredentials)
	defaultModels := make(map[models.ProviderID]string)
	for id, s := range cfg.Providers.All() {
		if s.APIKey != "" {
			env[id] = s.APIKey
		}
		defaultModels[id] = s.DefaultModel
	}
	d.Credentials = credentials.NewCredentialService(d.Repositories.Credentials, env, defaultModels, d.Logger)

	prices, err := metrics.LoadPriceTable(cfg.Metrics.PricingFile)
	if err != nil {
		return fmt.Errorf("failed to load pricing: %w", err)
	}
	d.Prices = prices
	d.Ledger = metrics.NewLedger()

	d.Experiment = experiment.Identity{}
	if cfg.Experiment.Enabled {
		seed := cfg.Experiment.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		d.Experiment = experiment.NewSeededCaseExperiment(cfg.Experiment.Probability, seed)
		d.Logger.Info("case experiment enabled", zap.Float64("probability", cfg.Experiment.Probability))
	}

	var recorder dispatch.Recorder
	d.Audit = audit.NewAuditService(d.Repositories.DispatchRecords, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if cfg.Audit.Enabled {
		if err := d.Audit.Start(); err != nil {
			return fmt.Errorf("failed to start audit service: %w", err)
		}
		recorder = d.Audit
	}

	d.Dispatch = dispatch.NewDispatchService(
		d.Repositories.History,
		d.ProviderRegistry,
		d.Credentials,
		d.Experiment,
		d.Ledger,
		d.Prices,
		recorder,
		d.Logger,
		dispatch.Config{
			HistoryWindow:   cfg.Dispatch.HistoryWindow,
			ProviderTimeout: cfg.Dispatch.ProviderTimeout,
			DefaultModels:   defaultModels,
		},
	)
	return nil
}

// initHandlers builds the HTTP handlers over the services
func (d *Dependencies) initHandlers() {
	var storage repositories.HealthChecker
	if d.Storage != nil {
		storage = d.Storage
	}

	d.ChatHandler = handlers.NewChatHandler(d.Dispatch, d.Logger)
	arms, _ := d.Experiment.(handlers.ExperimentArms)
	d.MetricsHandler = handlers.NewMetricsHandler(d.Ledger, arms, d.Logger)
	d.CredentialsHandler = handlers.NewCredentialsHandler(d.Credentials, d.Logger)
	d.RecordsHandler = handlers.NewRecordsHandler(d.Audit, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(storage, d.ProviderRegistry, d.Logger).
		AddStats("audit", func() interface{} { return d.Audit.GetStats() })
	if d.HistoryCache != nil {
		d.HealthHandler.AddStats("history_cache", func() interface{} { return d.HistoryCache.Stats() })
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopWorkers != nil {
		d.stopWorkers()
	}

	// Drain queued audit records before the store goes away
	if d.Audit != nil && d.Audit.GetStats().Started {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Storage != nil {
		if err := d.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		} else {
			d.Logger.Info("storage closed")
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// closeStorage releases the store after a failed initialization
func (d *Dependencies) closeStorage() {
	if d.stopWorkers != nil {
		d.stopWorkers()
	}
	if d.Storage != nil {
		_ = d.Storage.Close()
	}
}
