package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/service"
)

// DeliveryHandler lists delivery attempts.
type DeliveryHandler struct {
	svc    *service.FanoutService
	logger *zap.Logger
}

func NewDeliveryHandler(svc *service.FanoutService, logger *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, logger: logger}
}

// List handles GET /api/v1/deliveries
//
// @Summary  List deliveries with filtering and pagination
// @Tags     deliveries
// @Produce  json
// @Param    status      query     string  false  "Filter by status"
// @Param    message_id  query     string  false  "Filter by message"
// @Param    page        query     int     false  "Page number (default 1)"
// @Param    limit       query     int     false  "Items per page (default 20, max 100)"
// @Success  200         {object}  map[string]any
// @Failure  422         {object}  map[string]string
// @Router   /api/v1/deliveries [get]
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDeliveryFilter(r)
	if err != nil {
		mapError(w, err)
		return
	}

	deliveries, total, err := h.svc.ListDeliveries(r.Context(), filter)
	if err != nil {
		h.logger.Error("list deliveries failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []*domain.Delivery{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  deliveries,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

func parseDeliveryFilter(r *http.Request) (domain.DeliveryFilter, error) {
	q := r.URL.Query()
	filter := domain.DeliveryFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.DeliveryStatus(s)
		if !st.IsValid() {
			return filter, domain.ErrInvalidStatus
		}
		filter.Status = &st
	}
	if id := q.Get("message_id"); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			return filter, domain.ErrInvalidID
		}
		filter.MessageID = &id
	}
	return filter, nil
}
