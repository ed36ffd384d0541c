package inapp

import (
	"context"

	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	PriorityNormal = "normal"

	defaultPageSize = 20
	maxPageSize     = 50
)

// Store persists in-app notifications.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}

// Pusher forwards a stored notification to the user's open connections.
type Pusher interface {
	PublishNotification(userID uuid.UUID, notification any)
}

type Service struct {
	store Store
	push  Pusher
	log   *logger.Logger
}

// NewService creates the in-app notification service. push may be nil.
func NewService(store Store, push Pusher, log *logger.Logger) *Service {
	return &Service{store: store, push: push, log: log}
}

// Send persists the notification and pushes it to the user if they are online.
func (s *Service) Send(ctx context.Context, p CreateParams) (Notification, error) {
	if p.UserID == uuid.Nil {
		return Notification{}, apperr.Validation(errUserIDRequired)
	}
	p.Title = sanitize.Text(p.Title)
	p.Message = sanitize.Text(p.Message)
	if p.Title == "" || p.Message == "" {
		return Notification{}, apperr.Validation("title and message are required")
	}
	if p.Priority == "" {
		p.Priority = PriorityNormal
	}

	n, err := s.store.Create(ctx, p)
	if err != nil {
		s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		return Notification{}, err
	}

	if s.push != nil {
		s.push.PublishNotification(p.UserID, n)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.store.List(ctx, userID, pageSize, (page-1)*pageSize)
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}
