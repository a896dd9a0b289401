package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linquo/push-dispatch/internal/dispatch"
	"github.com/linquo/push-dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	TokenSends          *prometheus.CounterVec
	TokenDeactivations  prometheus.Counter
	BatchSize           prometheus.Histogram
	BatchDuration       prometheus.Histogram
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_notifications_sent_total",
			Help: "Total number of queue notifications delivered to at least one device.",
		}),

		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_notifications_failed_total",
			Help: "Total number of queue notifications that failed or were re-queued in a run.",
		}),

		TokenSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_token_sends_total",
			Help: "Per-device send attempts against the FCM gateway.",
		}, []string{"platform", "outcome"}),

		TokenDeactivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_token_deactivations_total",
			Help: "Device tokens deactivated after a permanent-invalid gateway response.",
		}),

		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_dispatch_batch_size",
			Help:    "Number of notifications claimed per dispatch run.",
			Buckets: []float64{0, 1, 2, 5, 10},
		}),

		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "push_dispatch_batch_seconds",
			Help:    "Wall-clock duration of one dispatch run.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.TokenSends,
		m.TokenDeactivations,
		m.BatchSize,
		m.BatchDuration,
	)

	return m
}

// DispatcherHooks returns the metric callbacks expected by dispatch.MetricHooks.
// Centralises the prometheus observation calls so the dispatcher stays
// metrics-agnostic.
func (m *Metrics) DispatcherHooks() dispatch.MetricHooks {
	return dispatch.MetricHooks{
		OnSent:   m.NotificationsSent.Inc,
		OnFailed: m.NotificationsFailed.Inc,
		OnTokenDelivered: func(p domain.Platform) {
			m.TokenSends.WithLabelValues(string(p), "delivered").Inc()
		},
		OnTokenRejected: func(p domain.Platform) {
			m.TokenSends.WithLabelValues(string(p), "rejected").Inc()
		},
		OnTokenDeactivated: m.TokenDeactivations.Inc,
		OnBatch: func(size int, elapsed time.Duration) {
			m.BatchSize.Observe(float64(size))
			m.BatchDuration.Observe(elapsed.Seconds())
		},
	}
}
