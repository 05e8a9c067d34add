package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/api/handler"
	apimw "github.com/notifyhub/deadman-switch/internal/api/middleware"
	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.FanoutService,
	q *queue.DeliveryQueue,
	reg prometheus.Gatherer,
	db handler.Pinger,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(domain.MaxMessageBytes + 64<<10))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	mh := handler.NewMessageHandler(svc, logger)
	dh := handler.NewDeliveryHandler(svc, logger)
	sh := handler.NewStatsHandler(svc, q)
	hh := handler.NewHealthHandler(db)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/publish", mh.Publish)
		r.Get("/messages/{id}", mh.GetByID)
		r.Get("/deliveries", dh.List)
		r.Get("/stats", sh.GetStats)
	})

	return r
}
