package adapters

import (
	"context"

	"marketplace_backend/internal/scheduler"

	"github.com/google/uuid"
)

// NotifyQueue adapts the asynq client to the matching module's queue port.
type NotifyQueue struct {
	client *scheduler.Client
}

func NewNotifyQueue(client *scheduler.Client) *NotifyQueue {
	return &NotifyQueue{client: client}
}

func (a *NotifyQueue) EnqueueNotifyProviders(ctx context.Context, requestID uuid.UUID, mode string, providerIDs []uuid.UUID) error {
	ids := make([]string, 0, len(providerIDs))
	for _, id := range providerIDs {
		ids = append(ids, id.String())
	}
	return a.client.EnqueueNotifyProviders(ctx, scheduler.NotifyProvidersPayload{
		RequestID:   requestID.String(),
		Mode:        mode,
		ProviderIDs: ids,
	})
}
