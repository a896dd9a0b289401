package domain

import "time"

// Status tracks the lifecycle of a queued push notification.
// A row is only claimable while pending; after a dispatch run it is
// either terminal (sent/failed) or back in pending awaiting a retry.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Platform identifies the device OS a token was issued for.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) IsValid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid:
		return true
	}
	return false
}

// DefaultMaxRetries bounds how often an unexpectedly failing
// notification is re-queued before it is marked failed for good.
const DefaultMaxRetries = 3

// Notification is one row of the push notification queue.
// AgentID is the logical recipient; the dispatcher resolves it to
// concrete device tokens at send time.
type Notification struct {
	ID           string            `json:"id"`
	AgentID      string            `json:"agent_id"`
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Data         map[string]string `json:"data,omitempty"`
	Status       Status            `json:"status"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// DeviceToken binds a gateway-issued device token to an agent.
// Only active tokens are eligible dispatch recipients; the dispatcher
// deactivates a token when the gateway reports it permanently invalid.
type DeviceToken struct {
	Token      string    `json:"device_token"`
	AgentID    string    `json:"agent_id"`
	Platform   Platform  `json:"platform"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// EnqueueRequest is the inbound payload for queueing a notification.
type EnqueueRequest struct {
	AgentID string            `json:"agent_id"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
}

func (r *EnqueueRequest) Validate() error {
	if r.AgentID == "" {
		return ErrInvalidAgent
	}
	if r.Title == "" || len(r.Title) > 256 {
		return ErrInvalidTitle
	}
	if r.Body == "" || len(r.Body) > 4096 {
		return ErrInvalidBody
	}
	return nil
}

// RegisterDeviceRequest is the inbound payload for binding a device token.
type RegisterDeviceRequest struct {
	AgentID  string   `json:"agent_id"`
	Token    string   `json:"device_token"`
	Platform Platform `json:"platform"`
}

func (r *RegisterDeviceRequest) Validate() error {
	if r.AgentID == "" {
		return ErrInvalidAgent
	}
	if r.Token == "" {
		return ErrInvalidDeviceToken
	}
	if !r.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	return nil
}

// ListFilter holds query parameters for paginated queue listing.
type ListFilter struct {
	Status  *Status
	AgentID *string
	Page    int
	Limit   int
}
