package adapters

import (
	"context"

	matchingservice "marketplace_backend/internal/matching/service"
	"marketplace_backend/internal/matching/transport"

	"github.com/google/uuid"
)

// MatchingNotifier adapts the matching dispatcher for the background worker,
// which only knows the mode as a string and has no use for the per-provider result.
type MatchingNotifier struct {
	dispatcher *matchingservice.Dispatcher
}

func NewMatchingNotifier(dispatcher *matchingservice.Dispatcher) *MatchingNotifier {
	return &MatchingNotifier{dispatcher: dispatcher}
}

func (a *MatchingNotifier) NotifyProviders(ctx context.Context, requestID uuid.UUID, mode string, providerIDs []uuid.UUID) error {
	_, err := a.dispatcher.NotifyProviders(ctx, requestID, transport.Mode(mode), providerIDs)
	return err
}
