package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linquo/push-dispatch/internal/domain"
)

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository returns a NotificationRepository backed by PostgreSQL.
func NewPgNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

const notificationColumns = `id, agent_id, title, body, data, status,
		retry_count, max_retries, error_message, processed_at, created_at`

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO push_notification_queue
			(id, agent_id, title, body, data, status, retry_count, max_retries, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		n.ID, n.AgentID, n.Title, n.Body, n.Data, n.Status,
		n.RetryCount, n.MaxRetries, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM push_notification_queue WHERE id = $1`, id)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *pgNotificationRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	// Count total matching rows for pagination metadata.
	var total int
	countQuery := "SELECT COUNT(*) FROM push_notification_queue" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	// Append pagination args after the WHERE args.
	args = append(args, f.Limit, offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT `+notificationColumns+`
		FROM push_notification_queue%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications, err := scanNotifications(rows)
	return notifications, total, err
}

func (r *pgNotificationRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM push_notification_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE push_notification_queue
		SET status = 'sent', error_message = NULL, processed_at = $1
		WHERE id = $2`, processedAt, id)
	return err
}

func (r *pgNotificationRepository) MarkFailed(ctx context.Context, id string, retryCount int, errMsg string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE push_notification_queue
		SET status = 'failed', retry_count = $1, error_message = $2, processed_at = $3
		WHERE id = $4`, retryCount, errMsg, processedAt, id)
	return err
}

func (r *pgNotificationRepository) Requeue(ctx context.Context, id string, retryCount int, errMsg string, processedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE push_notification_queue
		SET status = 'pending', retry_count = $1, error_message = $2, processed_at = $3
		WHERE id = $4`, retryCount, errMsg, processedAt, id)
	return err
}

// ---- helpers ----

// scanNotification reads a single queue row from any pgx row type.
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID, &n.AgentID, &n.Title, &n.Body, &n.Data, &n.Status,
		&n.RetryCount, &n.MaxRetries, &n.ErrorMessage, &n.ProcessedAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var result []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.AgentID != nil {
		add("agent_id = $%d", *f.AgentID)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
