package main

import (
	"context"
	"time"

	providerrepo "marketplace_backend/internal/providers/repository"
	scoringrepo "marketplace_backend/internal/scoring/repository"
	scoringservice "marketplace_backend/internal/scoring/service"
	subscriptionrepo "marketplace_backend/internal/subscription/repository"
	subscriptionservice "marketplace_backend/internal/subscription/service"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/db"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

const batchSize = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting provider score backfill")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	providers := providerrepo.New(pool)
	plans := subscriptionservice.New(subscriptionrepo.New(pool), providers, nil, log)
	scores := scoringservice.New(providers, scoringrepo.New(pool), plans, log)

	started := time.Now()
	var refreshed, failed int
	cursor := uuid.Nil
	for {
		ids, err := providers.ListActiveIDs(ctx, cursor, batchSize)
		if err != nil {
			log.Error("failed to list providers", "error", err)
			return
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := scores.RefreshScore(ctx, id); err != nil {
				log.Error("score refresh failed", "providerId", id, "error", err)
				failed++
				continue
			}
			refreshed++
		}
		cursor = ids[len(ids)-1]
	}

	log.Info("provider score backfill complete", "refreshed", refreshed, "failed", failed, "elapsed", time.Since(started).String())
}
