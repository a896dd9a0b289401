package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/domain"
	"github.com/linquo/push-dispatch/internal/fcm"
	"github.com/linquo/push-dispatch/internal/ratelimiter"
	"github.com/linquo/push-dispatch/internal/repository"
)

// Terminal error messages written to the queue row. These are part of
// the operator-facing contract, not just log noise.
const (
	msgNoDeviceTokens  = "No device tokens found"
	msgAllTokensFailed = "All device tokens failed"
)

// MetricHooks carries the metric callback functions injected by main.
// All hooks are optional (nil = no-op).
type MetricHooks struct {
	OnSent             func()
	OnFailed           func()
	OnTokenDelivered   func(platform domain.Platform)
	OnTokenRejected    func(platform domain.Platform)
	OnTokenDeactivated func()
	OnBatch            func(size int, elapsed time.Duration)
}

func (h *MetricHooks) fill() {
	if h.OnSent == nil {
		h.OnSent = func() {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func() {}
	}
	if h.OnTokenDelivered == nil {
		h.OnTokenDelivered = func(domain.Platform) {}
	}
	if h.OnTokenRejected == nil {
		h.OnTokenRejected = func(domain.Platform) {}
	}
	if h.OnTokenDeactivated == nil {
		h.OnTokenDeactivated = func() {}
	}
	if h.OnBatch == nil {
		h.OnBatch = func(int, time.Duration) {}
	}
}

// Summary is the per-invocation outcome: notification counts, not token counts.
type Summary struct {
	Total  int `json:"total"`
	Sent   int `json:"success"`
	Failed int `json:"failed"`
}

// Dispatcher drains one bounded batch of pending notifications per Run:
// it resolves each notification's agent to its active device tokens,
// sends one gateway request per token, and records a terminal or
// re-queued status per notification.
//
// Runs are strictly sequential — one notification at a time, one token
// at a time. Concurrent Run calls are serialised: the loser returns
// domain.ErrDispatchBusy instead of double-claiming pending rows.
type Dispatcher struct {
	notifications repository.NotificationRepository
	tokens        repository.DeviceTokenRepository
	gateway       fcm.Gateway
	limiter       *ratelimiter.PlatformLimiters
	batchSize     int
	logger        *zap.Logger
	hooks         MetricHooks

	mu sync.Mutex
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	tokens repository.DeviceTokenRepository,
	gateway fcm.Gateway,
	limiter *ratelimiter.PlatformLimiters,
	batchSize int,
	logger *zap.Logger,
	hooks MetricHooks,
) *Dispatcher {
	hooks.fill()
	return &Dispatcher{
		notifications: notifications,
		tokens:        tokens,
		gateway:       gateway,
		limiter:       limiter,
		batchSize:     batchSize,
		logger:        logger,
		hooks:         hooks,
	}
}

// Run processes one batch. A non-nil error means the invocation failed
// before any row was touched (credential or batch-fetch failure, or a
// concurrent run in progress); per-notification failures are absorbed
// into the Summary.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	if !d.mu.TryLock() {
		return Summary{}, domain.ErrDispatchBusy
	}
	defer d.mu.Unlock()

	start := time.Now()

	sender, err := d.gateway.Open(ctx)
	if err != nil {
		return Summary{}, err
	}

	batch, err := d.notifications.ClaimPending(ctx, d.batchSize)
	if err != nil {
		return Summary{}, err
	}
	if len(batch) == 0 {
		return Summary{}, nil
	}

	d.logger.Info("processing pending notifications", zap.Int("count", len(batch)))

	summary := Summary{Total: len(batch)}
	for _, n := range batch {
		delivered, err := d.process(ctx, sender, n)
		if err != nil {
			d.requeueOrFail(ctx, n, err)
			summary.Failed++
			d.hooks.OnFailed()
			continue
		}
		if delivered {
			summary.Sent++
			d.hooks.OnSent()
		} else {
			summary.Failed++
			d.hooks.OnFailed()
		}
	}

	d.hooks.OnBatch(len(batch), time.Since(start))
	d.logger.Info("dispatch complete",
		zap.Int("total", summary.Total),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// process handles one notification to a terminal state. The bool result
// reports whether at least one token accepted the delivery. A non-nil
// error is an unexpected failure that drives the bounded retry path —
// clean per-token rejections never surface here.
func (d *Dispatcher) process(ctx context.Context, sender fcm.Sender, n *domain.Notification) (bool, error) {
	log := d.logger.With(
		zap.String("notification_id", n.ID),
		zap.String("agent_id", n.AgentID),
	)

	tokens, err := d.tokens.ActiveForAgent(ctx, n.AgentID)
	if err != nil {
		return false, err
	}

	// Absence of any recipient is not transient: fail immediately,
	// leaving retry_count untouched.
	if len(tokens) == 0 {
		log.Warn("no active device tokens for agent")
		if err := d.notifications.MarkFailed(ctx, n.ID, n.RetryCount, msgNoDeviceTokens, time.Now().UTC()); err != nil {
			return false, err
		}
		return false, nil
	}

	allTokensFailed := true
	for _, t := range tokens {
		if err := d.limiter.Wait(ctx, t.Platform); err != nil {
			return false, err
		}

		sendErr := sender.Send(ctx, fcm.Message{
			Token: t.Token,
			Title: n.Title,
			Body:  n.Body,
			Data:  n.Data,
		})
		if sendErr == nil {
			allTokensFailed = false
			d.hooks.OnTokenDelivered(t.Platform)
			log.Info("delivered to device", zap.String("device_token", truncateToken(t.Token)))
			continue
		}

		d.hooks.OnTokenRejected(t.Platform)

		// Token invalidation cleanup is opportunistic and per-token;
		// it never feeds the notification-level retry counter.
		var rejection *fcm.SendError
		if errors.As(sendErr, &rejection) && rejection.Permanent() {
			log.Warn("deactivating invalid device token",
				zap.String("device_token", truncateToken(t.Token)),
				zap.Int("status", rejection.StatusCode),
			)
			if err := d.tokens.Deactivate(ctx, t.Token); err != nil {
				log.Error("failed to deactivate device token", zap.Error(err))
			}
			d.hooks.OnTokenDeactivated()
			continue
		}

		log.Warn("send to device failed",
			zap.String("device_token", truncateToken(t.Token)),
			zap.Error(sendErr),
		)
	}

	if allTokensFailed {
		if err := d.notifications.MarkFailed(ctx, n.ID, n.RetryCount, msgAllTokensFailed, time.Now().UTC()); err != nil {
			return false, err
		}
		return false, nil
	}

	// Partial success is success: any accepted token marks the
	// notification sent. A bookkeeping failure here is logged but the
	// delivery already happened, so the outcome stays "sent".
	if err := d.notifications.MarkSent(ctx, n.ID, time.Now().UTC()); err != nil {
		log.Error("failed to mark notification as sent", zap.Error(err))
	}
	return true, nil
}

// requeueOrFail handles an unexpected per-notification failure: the
// retry counter is incremented and the row goes back to pending until
// the budget is exhausted, after which it is failed for good.
func (d *Dispatcher) requeueOrFail(ctx context.Context, n *domain.Notification, procErr error) {
	retryCount := n.RetryCount + 1
	maxRetries := n.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}
	now := time.Now().UTC()

	log := d.logger.With(
		zap.String("notification_id", n.ID),
		zap.Int("retry_count", retryCount),
		zap.Int("max_retries", maxRetries),
	)

	if retryCount < maxRetries {
		log.Warn("processing failed, re-queueing", zap.Error(procErr))
		if err := d.notifications.Requeue(ctx, n.ID, retryCount, procErr.Error(), now); err != nil {
			log.Error("failed to re-queue notification", zap.Error(err))
		}
		return
	}

	log.Error("retry budget exhausted, failing notification", zap.Error(procErr))
	if err := d.notifications.MarkFailed(ctx, n.ID, retryCount, procErr.Error(), now); err != nil {
		log.Error("failed to mark notification as failed", zap.Error(err))
	}
}

// truncateToken keeps device tokens out of logs beyond a recognisable prefix.
func truncateToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
