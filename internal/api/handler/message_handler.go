package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/deadman-switch/internal/api/middleware"
	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/service"
)

// IdempotencyHeader carries the caller's deduplication key on publish.
const IdempotencyHeader = "Idempotency-Key"

// MessageHandler handles publishing to the topic and message lookup.
type MessageHandler struct {
	svc    *service.FanoutService
	logger *zap.Logger
}

func NewMessageHandler(svc *service.FanoutService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

// Publish handles POST /api/v1/publish
//
// @Summary     Publish a message to the topic
// @Tags        messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header    string                 false  "Idempotency key"
// @Param       body             body      domain.PublishRequest  true   "Message payload"
// @Success     201              {object}  domain.Message
// @Success     200              {object}  domain.Message         "Duplicate: returned existing message"
// @Failure     422              {object}  map[string]string
// @Router      /api/v1/publish [post]
func (h *MessageHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req domain.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, isDuplicate, err := h.svc.Publish(r.Context(), req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.logger.Warn("publish failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusCreated
	if isDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, msg)
}

// GetByID handles GET /api/v1/messages/{id}
//
// @Summary  Get a message and its deliveries
// @Tags     messages
// @Produce  json
// @Param    id   path      string  true  "Message UUID"
// @Success  200  {object}  map[string]any
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/messages/{id} [get]
func (h *MessageHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	msg, deliveries, err := h.svc.GetMessage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []*domain.Delivery{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    msg,
		"deliveries": deliveries,
	})
}
