package scheduler

import (
	"context"
	"fmt"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ProviderNotifier runs a notification batch for a request.
type ProviderNotifier interface {
	NotifyProviders(ctx context.Context, requestID uuid.UUID, mode string, providerIDs []uuid.UUID) error
}

// ScoreRefresher recomputes and stores one provider's score.
type ScoreRefresher interface {
	RefreshScore(ctx context.Context, providerID uuid.UUID) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	notifier ProviderNotifier
	scores   ScoreRefresher
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, notifier ProviderNotifier, scores ScoreRefresher, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:   server,
		mux:      asynq.NewServeMux(),
		notifier: notifier,
		scores:   scores,
		log:      log,
	}
	w.mux.HandleFunc(TaskNotifyProviders, w.handleNotifyProviders)
	w.mux.HandleFunc(TaskScoreRefresh, w.handleScoreRefresh)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNotifyProviders(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotifyProvidersPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	requestID, err := uuid.Parse(payload.RequestID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	providerIDs := make([]uuid.UUID, 0, len(payload.ProviderIDs))
	for _, raw := range payload.ProviderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			w.log.Warn("skipping malformed provider id in notify task", "requestId", requestID, "value", raw)
			continue
		}
		providerIDs = append(providerIDs, id)
	}

	return skipRetryIfGone(w.notifier.NotifyProviders(ctx, requestID, payload.Mode, providerIDs))
}

func (w *Worker) handleScoreRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreRefreshPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	providerID, err := uuid.Parse(payload.ProviderID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return skipRetryIfGone(w.scores.RefreshScore(ctx, providerID))
}

// skipRetryIfGone stops asynq from retrying work whose request or provider
// no longer exists.
func skipRetryIfGone(err error) error {
	if err != nil && apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}
