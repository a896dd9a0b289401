package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/linquo/push-dispatch/internal/domain"
)

// PlatformLimiters holds one token bucket limiter per device platform.
// Each limiter enforces a steady-state outbound send rate against the
// push gateway. Burst is set equal to the rate so no extra burst
// capacity is allowed beyond the configured per-second maximum.
type PlatformLimiters struct {
	limiters map[domain.Platform]*rate.Limiter
}

// New creates a PlatformLimiters with ratePerSec sends per second per platform.
func New(ratePerSec int) *PlatformLimiters {
	r := rate.Limit(ratePerSec)
	burst := ratePerSec

	return &PlatformLimiters{
		limiters: map[domain.Platform]*rate.Limiter{
			domain.PlatformIOS:     rate.NewLimiter(r, burst),
			domain.PlatformAndroid: rate.NewLimiter(r, burst),
		},
	}
}

// Wait blocks until the platform's limiter grants a token.
// Called by the dispatcher immediately before each gateway send.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (pl *PlatformLimiters) Wait(ctx context.Context, p domain.Platform) error {
	l, ok := pl.limiters[p]
	if !ok {
		// Unknown platform rows are still delivered, just unthrottled.
		return nil
	}
	return l.Wait(ctx)
}
