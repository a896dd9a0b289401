package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/api/handler"
	apimw "github.com/linquo/push-dispatch/internal/api/middleware"
	"github.com/linquo/push-dispatch/internal/dispatch"
	"github.com/linquo/push-dispatch/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	dispatcher *dispatch.Dispatcher,
	svc *service.QueueService,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CORS)               // permissive CORS + preflight short-circuit
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	dh := handler.NewDispatchHandler(dispatcher, logger)
	nh := handler.NewNotificationHandler(svc, logger)
	devh := handler.NewDeviceHandler(svc, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Batch trigger — hit by external cron or manually.
		r.Post("/dispatch", dh.Run)

		// Queue producer surface
		r.Post("/notifications", nh.Enqueue)
		r.Get("/notifications", nh.List)
		r.Get("/notifications/{id}", nh.GetByID)

		// Device token bindings
		r.Post("/devices", devh.Register)
		r.Delete("/devices/{token}", devh.Deactivate)
	})

	return r
}
