package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/domain"
)

// Poller invokes the dispatcher on a fixed interval for deployments
// that do not want to rely on an external cron hitting the HTTP
// trigger. An interval of zero disables it entirely.
type Poller struct {
	dispatcher *Dispatcher
	interval   time.Duration
	logger     *zap.Logger
}

func NewPoller(dispatcher *Dispatcher, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{dispatcher: dispatcher, interval: interval, logger: logger}
}

// Run ticks every interval and runs one dispatch batch.
// Stops cleanly when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("dispatch poller started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("dispatch poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	summary, err := p.dispatcher.Run(ctx)
	if err != nil {
		// An HTTP-triggered run may already hold the batch; skip this tick.
		if errors.Is(err, domain.ErrDispatchBusy) {
			p.logger.Debug("dispatch already running, skipping tick")
			return
		}
		p.logger.Error("dispatch poll error", zap.Error(err))
		return
	}

	if summary.Total > 0 {
		p.logger.Info("poll dispatched batch",
			zap.Int("total", summary.Total),
			zap.Int("sent", summary.Sent),
			zap.Int("failed", summary.Failed),
		)
	}
}
