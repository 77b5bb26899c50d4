// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Zevik/google-sheets-site-builder/internal/api"
	"github.com/Zevik/google-sheets-site-builder/internal/clock/system"
	"github.com/Zevik/google-sheets-site-builder/internal/config"
	"github.com/Zevik/google-sheets-site-builder/internal/dispatcher"
	"github.com/Zevik/google-sheets-site-builder/internal/fetcher/gviz"
	"github.com/Zevik/google-sheets-site-builder/internal/hash/sha256"
	"github.com/Zevik/google-sheets-site-builder/internal/id/uuid"
	"github.com/Zevik/google-sheets-site-builder/internal/policy/ratelimit"
	queueMemory "github.com/Zevik/google-sheets-site-builder/internal/queue/memory"
	"github.com/Zevik/google-sheets-site-builder/internal/scheduler"
	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
	memoryStorage "github.com/Zevik/google-sheets-site-builder/internal/storage/memory"
	pgstore "github.com/Zevik/google-sheets-site-builder/internal/storage/postgres"
	redisstore "github.com/Zevik/google-sheets-site-builder/internal/storage/redis"
	"github.com/Zevik/google-sheets-site-builder/internal/worker"
)

const shutdownGrace = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     *system.Clock
	fetcher   sitedata.TabFetcher
	service   *sitedata.Service
	sites     sitedata.SiteRegistry
	apiServer *api.Server
	queue     *queueMemory.Queue
	dispatch  *dispatcher.Dispatcher
	scheduler *scheduler.Scheduler
	pool      *pgxpool.Pool
	redis     *redisstore.CacheStore
	ready     []api.ReadinessCheck
}

// Build creates the application's dependencies. Any connection opened before a failure
// is closed again.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
	}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Bool("refresh_enabled", cfg.Refresh.Enabled),
	)

	if err := app.build(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	a.fetcher = a.setupFetcher()
	assembler := sitedata.NewAssembler(a.fetcher, a.clock, sitedata.AssemblerConfig{
		TabTimeout:     a.cfg.FetchTimeout(),
		FilterInactive: a.cfg.Sheets.FilterInactive,
		FetchTemplates: a.cfg.Sheets.FetchTemplates,
	}, a.logger.Named("assembler"))

	if err := a.setupDatabase(ctx); err != nil {
		return err
	}
	cache, err := a.setupCache(ctx)
	if err != nil {
		return err
	}
	if err := a.setupSites(ctx); err != nil {
		return err
	}

	a.service = sitedata.NewService(assembler, cache, a.sites, a.clock, sitedata.ServiceConfig{
		StaleAfter: a.cfg.StaleAfter(),
	}, a.logger.Named("sitedata"))

	a.setupRefresh()

	deps := api.Deps{
		Service: a.service,
		Sites:   a.sites,
		Fetcher: a.fetcher,
		Hasher:  sha256.New(),
		IDGen:   uuid.New(),
		Clock:   a.clock,
		Ready:   a.ready,
	}
	if a.dispatch != nil {
		deps.Refresh = a.dispatch
	}
	a.apiServer = api.NewServer(deps, a.cfg, a.logger.Named("api"))
	return nil
}

func (a *App) setupFetcher() sitedata.TabFetcher {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.Sheets.RateLimitRPS,
		DefaultBurst: a.cfg.Sheets.RateLimitBurst,
	})
	fetcher := gviz.New(gviz.Config{
		BaseURL:   a.cfg.Sheets.BaseURL,
		UserAgent: a.cfg.Sheets.UserAgent,
		Timeout:   a.cfg.FetchTimeout(),
	}, limiter)
	a.logger.Info("using gviz tab fetcher",
		zap.String("base_url", a.cfg.Sheets.BaseURL),
		zap.Float64("rate_limit_rps", a.cfg.Sheets.RateLimitRPS),
	)
	// No memo here: a forced refresh has to reach the spreadsheet.
	return fetcher
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no DSN specified for database, using in-memory site registry")
		return nil
	}
	pool, err := pgstore.Connect(ctx, pgstore.PoolConfig{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.ConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	a.pool = pool
	if err := pgstore.EnsureSchema(ctx, pool, a.cfg.Cache.Table, a.cfg.DB.SitesTable); err != nil {
		return fmt.Errorf("postgres schema init failed: %w", err)
	}
	a.ready = append(a.ready, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		return nil
	})
	a.logger.Info("postgres initialized", zap.String("sites_table", a.cfg.DB.SitesTable))
	return nil
}

func (a *App) setupCache(ctx context.Context) (sitedata.CacheStore, error) {
	switch a.cfg.Cache.Backend {
	case config.CachePostgres:
		if a.pool == nil {
			return nil, errors.New("postgres cache requires db.dsn")
		}
		store, err := pgstore.NewCacheStore(a.pool, a.cfg.Cache.Table)
		if err != nil {
			return nil, fmt.Errorf("postgres cache init failed: %w", err)
		}
		a.logger.Info("using postgres cache backend", zap.String("table", a.cfg.Cache.Table))
		return store, nil
	case config.CacheRedis:
		opts := a.redisOptions()
		store, err := redisstore.New(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("redis cache init failed: %w", err)
		}
		a.redis = store
		a.ready = append(a.ready, store.Ping)
		a.logger.Info("using redis cache backend",
			zap.String("prefix", opts.Prefix),
			zap.Duration("ttl", opts.TTL),
		)
		return store, nil
	case config.CacheNone:
		a.logger.Warn("snapshot cache disabled, every read fetches the spreadsheet")
		return nil, nil
	default:
		a.logger.Info("using in-memory cache backend")
		return memoryStorage.NewSnapshotStore(), nil
	}
}

func (a *App) redisOptions() redisstore.Options {
	opts := redisstore.DefaultOptions()
	opts.URL = a.cfg.Cache.RedisURL
	if a.cfg.Cache.RedisPrefix != "" {
		opts.Prefix = a.cfg.Cache.RedisPrefix
	}
	opts.TTL = a.cfg.RedisTTL()
	return opts
}

func (a *App) setupSites(ctx context.Context) error {
	if a.pool != nil {
		store, err := pgstore.NewSiteStore(a.pool, a.cfg.DB.SitesTable)
		if err != nil {
			return fmt.Errorf("site store init failed: %w", err)
		}
		a.sites = store
		return nil
	}
	store := memoryStorage.NewSiteStore()
	if path := a.cfg.Sites.SeedFile; path != "" {
		n, err := store.LoadSites(ctx, path, a.clock.Now())
		if err != nil {
			return fmt.Errorf("site seed failed: %w", err)
		}
		a.logger.Info("site registry seeded", zap.String("path", path), zap.Int("sites", n))
	}
	a.sites = store
	return nil
}

func (a *App) setupRefresh() {
	if !a.cfg.Refresh.Enabled {
		a.logger.Info("background refresh disabled")
		return
	}
	a.queue = queueMemory.NewQueue(a.cfg.Refresh.QueueDepth)
	retry := worker.NewExponentialRetryPolicy(a.cfg.Refresh.MaxAttempts)
	workers := make([]*worker.Worker, 0, a.cfg.Refresh.Workers)
	for i := 0; i < a.cfg.Refresh.Workers; i++ {
		workers = append(workers, worker.New(
			a.queue,
			a.service,
			retry,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	a.dispatch = dispatcher.New(a.queue, workers)
	a.scheduler = scheduler.New(a.sites, a.dispatch, a.clock, scheduler.Config{
		Schedule:   a.cfg.Refresh.Schedule,
		StaleAfter: a.cfg.StaleAfter(),
	}, a.logger.Named("scheduler"))
	a.logger.Info("background refresh configured",
		zap.Int("workers", a.cfg.Refresh.Workers),
		zap.Int("queue_depth", a.cfg.Refresh.QueueDepth),
		zap.Int("max_attempts", a.cfg.Refresh.MaxAttempts),
	)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.dispatch != nil {
		go func() {
			a.logger.Info("dispatcher started")
			a.dispatch.Run(ctx)
		}()
	}
	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close()
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
