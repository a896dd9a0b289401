package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linquo/push-dispatch/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// Optional error overrides — set in tests to simulate failure paths.
	ClaimPendingErr error
	MarkSentErr     error
	MarkFailedErr   error
	RequeueErr      error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Notification
	for _, n := range m.notifications {
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		if f.AgentID != nil && n.AgentID != *f.AgentID {
			continue
		}
		clone := *n
		result = append(result, &clone)
	}
	return result, len(result), nil
}

func (m *MockNotificationRepository) ClaimPending(_ context.Context, limit int) ([]*domain.Notification, error) {
	if m.ClaimPendingErr != nil {
		return nil, m.ClaimPendingErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pending []*domain.Notification
	for _, n := range m.notifications {
		if n.Status == domain.StatusPending {
			clone := *n
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MockNotificationRepository) MarkSent(_ context.Context, id string, processedAt time.Time) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusSent
		n.ErrorMessage = nil
		n.ProcessedAt = &processedAt
	}
	return nil
}

func (m *MockNotificationRepository) MarkFailed(_ context.Context, id string, retryCount int, errMsg string, processedAt time.Time) error {
	if m.MarkFailedErr != nil {
		return m.MarkFailedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusFailed
		n.RetryCount = retryCount
		n.ErrorMessage = &errMsg
		n.ProcessedAt = &processedAt
	}
	return nil
}

func (m *MockNotificationRepository) Requeue(_ context.Context, id string, retryCount int, errMsg string, processedAt time.Time) error {
	if m.RequeueErr != nil {
		return m.RequeueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok {
		n.Status = domain.StatusPending
		n.RetryCount = retryCount
		n.ErrorMessage = &errMsg
		n.ProcessedAt = &processedAt
	}
	return nil
}

// MockDeviceTokenRepository is the in-memory DeviceTokenRepository for tests.
type MockDeviceTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*domain.DeviceToken

	ActiveForAgentErr error
	DeactivateErr     error
}

func NewMockDeviceTokenRepository() *MockDeviceTokenRepository {
	return &MockDeviceTokenRepository{
		tokens: make(map[string]*domain.DeviceToken),
	}
}

func (m *MockDeviceTokenRepository) Upsert(_ context.Context, t *domain.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.tokens[t.Token]; ok {
		existing.AgentID = t.AgentID
		existing.Platform = t.Platform
		existing.IsActive = true
		existing.LastUsedAt = t.LastUsedAt
		return nil
	}
	clone := *t
	m.tokens[t.Token] = &clone
	return nil
}

func (m *MockDeviceTokenRepository) ActiveForAgent(_ context.Context, agentID string) ([]*domain.DeviceToken, error) {
	if m.ActiveForAgentErr != nil {
		return nil, m.ActiveForAgentErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.DeviceToken
	for _, t := range m.tokens {
		if t.AgentID == agentID && t.IsActive {
			clone := *t
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Token < result[j].Token })
	return result, nil
}

func (m *MockDeviceTokenRepository) Deactivate(_ context.Context, token string) error {
	if m.DeactivateErr != nil {
		return m.DeactivateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		t.IsActive = false
	}
	return nil
}

// Get returns the stored token record regardless of active state.
// Test helper only.
func (m *MockDeviceTokenRepository) Get(token string) (*domain.DeviceToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, false
	}
	clone := *t
	return &clone, true
}
