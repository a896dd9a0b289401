package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/domain"
	"github.com/linquo/push-dispatch/internal/repository"
)

// QueueService handles the producer side of the pipeline: the support
// console enqueues notification requests here and registers the device
// tokens its mobile clients obtain from the push gateway. The dispatcher
// consumes what this service writes.
type QueueService struct {
	notifications repository.NotificationRepository
	tokens        repository.DeviceTokenRepository
	logger        *zap.Logger
}

func NewQueueService(
	notifications repository.NotificationRepository,
	tokens repository.DeviceTokenRepository,
	logger *zap.Logger,
) *QueueService {
	return &QueueService{notifications: notifications, tokens: tokens, logger: logger}
}

// Enqueue validates and persists a pending notification request.
func (s *QueueService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:         uuid.New().String(),
		AgentID:    req.AgentID,
		Title:      req.Title,
		Body:       req.Body,
		Data:       req.Data,
		Status:     domain.StatusPending,
		MaxRetries: domain.DefaultMaxRetries,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}

	s.logger.Info("notification enqueued",
		zap.String("id", n.ID),
		zap.String("agent_id", n.AgentID),
	)
	return n, nil
}

func (s *QueueService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return s.notifications.GetByID(ctx, id)
}

func (s *QueueService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error) {
	return s.notifications.List(ctx, filter)
}

// RegisterDevice binds a device token to an agent, reactivating the
// binding if the token was previously deactivated.
func (s *QueueService) RegisterDevice(ctx context.Context, req domain.RegisterDeviceRequest) (*domain.DeviceToken, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &domain.DeviceToken{
		Token:      req.Token,
		AgentID:    req.AgentID,
		Platform:   req.Platform,
		IsActive:   true,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	if err := s.tokens.Upsert(ctx, t); err != nil {
		return nil, fmt.Errorf("register device token: %w", err)
	}

	s.logger.Info("device token registered",
		zap.String("agent_id", t.AgentID),
		zap.String("platform", string(t.Platform)),
	)
	return t, nil
}

// DeactivateDevice turns a token binding off, e.g. on sign-out.
func (s *QueueService) DeactivateDevice(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrInvalidDeviceToken
	}
	return s.tokens.Deactivate(ctx, token)
}
