package handler

import (
	"net/http"

	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/service"
)

// StatsHandler serves a human-readable JSON snapshot of the bus.
// Raw Prometheus metrics are available at /metrics and are separate from
// this endpoint.
type StatsHandler struct {
	svc *service.FanoutService
	q   *queue.DeliveryQueue
}

func NewStatsHandler(svc *service.FanoutService, q *queue.DeliveryQueue) *StatsHandler {
	return &StatsHandler{svc: svc, q: q}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Queue depth and subscription snapshot
// @Tags     stats
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	fresh, retry := h.q.Depths()
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": map[string]int{
			"fresh": fresh,
			"retry": retry,
			"total": fresh + retry,
		},
		"subscriptions": h.svc.Subscriptions(),
	})
}
