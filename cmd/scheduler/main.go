package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketplace_backend/internal/adapters"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/matching"
	"marketplace_backend/internal/matching/cache"
	"marketplace_backend/internal/notification"
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
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	redisClient, err := db.NewRedis(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	if redisClient == nil {
		panic("REDIS_URL is required for the scheduler")
	}
	defer func() { _ = redisClient.Close() }()

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	// Worker-side wiring (no HTTP handlers required). Realtime pushes from this
	// process reach no sockets; the hub only satisfies the ports.
	providers := providerrepo.New(pool)
	requests := requestrepo.New(pool)
	hub := realtime.NewHub(log)
	defer hub.Close()

	subscriptionModule := subscription.NewModule(pool, providers, eventBus, validator.New(), log)
	scoringModule := scoring.NewModule(pool, providers, subscriptionModule.Service(), eventBus, client, log)
	notificationModule := notification.NewModule(notification.Deps{
		Pool:      pool,
		Providers: providers,
		Requests:  requests,
		Email:     email.NewSender(cfg),
		WhatsApp:  whatsapp.NewClient(cfg, cfg, log),
		Pusher:    hub,
		Config:    cfg,
		Log:       log,
	})
	matchingModule := matching.NewModule(matching.Deps{
		Requests:   requests,
		Candidates: providers,
		Quota:      subscriptionModule.Service(),
		Scorer:     scoringModule.Service(),
		Channel:    notificationModule.Channel(),
		Realtime:   hub,
		Store:      cache.NewRedisStore(redisClient, ""),
		EventBus:   eventBus,
		Config:     cfg,
		Log:        log,
	})

	sweep := scheduler.NewScoreRefreshSweep(
		providers,
		client,
		log,
		getDurationEnv("SCORE_SWEEP_INTERVAL", 15*time.Minute),
		getDurationEnv("SCORE_MAX_AGE", 24*time.Hour),
	)
	go sweep.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, adapters.NewMatchingNotifier(matchingModule.Dispatcher()), scoringModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
