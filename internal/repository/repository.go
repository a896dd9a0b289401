package repository

import (
	"context"
	"time"

	"github.com/linquo/push-dispatch/internal/domain"
)

// NotificationRepository defines all persistence operations on the push
// notification queue. The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_repos.go).
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error)

	// ClaimPending returns up to limit pending notifications,
	// oldest-created first.
	ClaimPending(ctx context.Context, limit int) ([]*domain.Notification, error)

	MarkSent(ctx context.Context, id string, processedAt time.Time) error

	// MarkFailed records a terminal failure. retryCount is written as-is:
	// terminal failures inside the dispatch loop pass the row's current
	// count unchanged, retry-exhaustion passes the incremented count.
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string, processedAt time.Time) error

	// Requeue puts a notification back in pending with an incremented
	// retry count so a future dispatch run claims it again.
	Requeue(ctx context.Context, id string, retryCount int, errMsg string, processedAt time.Time) error
}

// DeviceTokenRepository defines persistence operations on agent device
// token bindings.
type DeviceTokenRepository interface {
	// Upsert inserts a new binding or reactivates/refreshes an existing one.
	Upsert(ctx context.Context, t *domain.DeviceToken) error

	// ActiveForAgent returns every active token bound to the agent.
	ActiveForAgent(ctx context.Context, agentID string) ([]*domain.DeviceToken, error)

	// Deactivate flips is_active off for a token the gateway reported
	// permanently invalid. The row is kept for operator inspection.
	Deactivate(ctx context.Context, token string) error
}
