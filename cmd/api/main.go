package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_backend/internal/adapters"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/http/router"
	"marketplace_backend/internal/matching"
	"marketplace_backend/internal/matching/cache"
	matchingservice "marketplace_backend/internal/matching/service"
	"marketplace_backend/internal/matching/transport"
	"marketplace_backend/internal/notification"
	providerdomain "marketplace_backend/internal/providers/domain"
	providerrepo "marketplace_backend/internal/providers/repository"
	"marketplace_backend/internal/realtime"
	requestrepo "marketplace_backend/internal/requests/repository"
	"marketplace_backend/internal/scheduler"
	"marketplace_backend/internal/scoring"
	"marketplace_backend/internal/subscription"
	"marketplace_backend/internal/whatsapp"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/db"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	redisClient, err := db.NewRedis(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable; falling back to in-process cache", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	notifyQueue, refreshQueue, closeScheduler := initScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()
	if err := registerValidations(val); err != nil {
		panic("failed to register validations: " + err.Error())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	matchingMetrics, err := matchingservice.NewMetrics(registry)
	if err != nil {
		panic("failed to register matching metrics: " + err.Error())
	}

	eligibilityCache, err := newEligibilityCache(redisClient, cfg)
	if err != nil {
		panic("failed to initialize eligibility cache: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	providers := providerrepo.New(pool)
	requests := requestrepo.New(pool)

	subscriptionModule := subscription.NewModule(pool, providers, eventBus, val, log)
	if err := subscriptionModule.Service().EnsurePlansSeeded(ctx); err != nil {
		log.Error("failed to seed subscription plans", "error", err)
		panic("failed to seed subscription plans: " + err.Error())
	}

	scoringModule := scoring.NewModule(pool, providers, subscriptionModule.Service(), eventBus, refreshQueue, log)

	realtimeModule := realtime.NewModule(log)
	defer realtimeModule.Hub().Close()

	notificationModule := notification.NewModule(notification.Deps{
		Pool:      pool,
		Providers: providers,
		Requests:  requests,
		Email:     email.NewSender(cfg),
		WhatsApp:  whatsapp.NewClient(cfg, cfg, log),
		Pusher:    realtimeModule.Hub(),
		Config:    cfg,
		Log:       log,
	})

	matchingModule := matching.NewModule(matching.Deps{
		Requests:   requests,
		Candidates: providers,
		Quota:      subscriptionModule.Service(),
		Scorer:     scoringModule.Service(),
		Channel:    notificationModule.Channel(),
		Realtime:   realtimeModule.Hub(),
		Store:      eligibilityCache,
		Metrics:    matchingMetrics,
		EventBus:   eventBus,
		Queue:      notifyQueue,
		Config:     cfg,
		Val:        val,
		Log:        log,
	})

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Modules: []apphttp.Module{
			subscriptionModule,
			scoringModule,
			matchingModule,
			notificationModule,
			realtimeModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func registerValidations(val *validator.Validator) error {
	if err := val.RegisterOneOf("plan_name", providerdomain.PlanNames()...); err != nil {
		return err
	}
	return val.RegisterOneOf("notify_mode", string(transport.ModeAuto), string(transport.ModeDirected))
}

func newEligibilityCache(client *redis.Client, cfg config.MatchingConfig) (cache.Store, error) {
	if client != nil {
		return cache.NewRedisStore(client, ""), nil
	}
	return cache.NewMemoryStore(cfg.GetEligibilityMemoryCacheSize())
}

// initScheduler returns nil interfaces when Redis is not configured so modules
// fall back to running their background work inline.
func initScheduler(cfg config.SchedulerConfig, log *logger.Logger) (matching.NotifyQueue, scoring.RefreshQueue, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notifications and score refreshes run inline")
		return nil, nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil, nil
	}

	return adapters.NewNotifyQueue(client), client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
