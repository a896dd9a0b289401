package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linquo/push-dispatch/internal/domain"
)

type pgDeviceTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPgDeviceTokenRepository returns a DeviceTokenRepository backed by PostgreSQL.
func NewPgDeviceTokenRepository(pool *pgxpool.Pool) DeviceTokenRepository {
	return &pgDeviceTokenRepository{pool: pool}
}

func (r *pgDeviceTokenRepository) Upsert(ctx context.Context, t *domain.DeviceToken) error {
	// Re-registering a known token reactivates it and refreshes last_used_at;
	// the token may also have moved to a different agent account.
	_, err := r.pool.Exec(ctx, `
		INSERT INTO agent_device_tokens
			(device_token, agent_id, platform, is_active, created_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (device_token) DO UPDATE SET
			agent_id     = EXCLUDED.agent_id,
			platform     = EXCLUDED.platform,
			is_active    = TRUE,
			last_used_at = EXCLUDED.last_used_at`,
		t.Token, t.AgentID, t.Platform, t.IsActive, t.CreatedAt, t.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

func (r *pgDeviceTokenRepository) ActiveForAgent(ctx context.Context, agentID string) ([]*domain.DeviceToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT device_token, agent_id, platform, is_active, created_at, last_used_at
		FROM agent_device_tokens
		WHERE agent_id = $1 AND is_active = TRUE`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list active device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.DeviceToken
	for rows.Next() {
		var t domain.DeviceToken
		if err := rows.Scan(&t.Token, &t.AgentID, &t.Platform, &t.IsActive, &t.CreatedAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (r *pgDeviceTokenRepository) Deactivate(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE agent_device_tokens SET is_active = FALSE WHERE device_token = $1`, token)
	return err
}
