package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/delivery"
	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/ratelimiter"
	"github.com/notifyhub/deadman-switch/internal/repository"
)

// Worker is a single goroutine that continuously pulls items from the delivery
// queue, applies per-subscription rate limiting, pushes via the provider, and
// handles retry scheduling on failure.
type Worker struct {
	id      int
	subs    map[string]domain.Subscription
	q       *queue.DeliveryQueue
	repo    repository.MessageRepository
	prov    delivery.Provider
	limiter *ratelimiter.EndpointLimiters
	backoff []time.Duration
	logger  *zap.Logger
	hooks   MetricHooks
}

// NewWorker constructs a worker. Nil hooks are replaced by no-ops.
func NewWorker(
	id int,
	subs []domain.Subscription,
	q *queue.DeliveryQueue,
	repo repository.MessageRepository,
	prov delivery.Provider,
	limiter *ratelimiter.EndpointLimiters,
	backoff []time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Worker {
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(string, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(string) {}
	}
	if hooks.OnRetry == nil {
		hooks.OnRetry = func(string) {}
	}
	byID := make(map[string]domain.Subscription, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}
	return &Worker{
		id: id, subs: byID, q: q, repo: repo, prov: prov,
		limiter: limiter, backoff: backoff, logger: logger, hooks: hooks,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.Process(ctx, item)
	}
}

// Process performs one delivery attempt for item.
func (w *Worker) Process(ctx context.Context, item queue.Item) {
	start := time.Now()
	log := w.logger.With(
		zap.String("delivery_id", item.DeliveryID),
		zap.String("subscription_id", item.SubscriptionID),
	)

	d, err := w.repo.GetDelivery(ctx, item.DeliveryID)
	if err != nil {
		log.Error("failed to fetch delivery", zap.Error(err))
		if !errors.Is(err, domain.ErrNotFound) {
			w.release(ctx, item.DeliveryID, log)
		}
		return
	}

	// A retry and a recovery can race for the same row; the first one wins.
	if d.Status == domain.DeliveryDelivered || d.Status == domain.DeliveryFailed {
		log.Debug("delivery already finished", zap.String("status", string(d.Status)))
		return
	}

	sub, ok := w.subs[d.SubscriptionID]
	if !ok {
		log.Error("delivery references an unknown subscription")
		if err := w.repo.MarkFailed(ctx, d.ID, "unknown subscription"); err != nil {
			log.Error("failed to mark delivery as failed", zap.Error(err))
		}
		w.hooks.OnFailed(d.SubscriptionID)
		return
	}

	msg, _, err := w.repo.GetMessage(ctx, d.MessageID)
	if err != nil {
		log.Error("failed to fetch message", zap.Error(err))
		w.release(ctx, d.ID, log)
		return
	}

	if err := w.repo.UpdateStatus(ctx, d.ID, domain.DeliveryInFlight); err != nil {
		log.Error("failed to mark as in flight", zap.Error(err))
		w.release(ctx, d.ID, log)
		return
	}

	// Block here until the per-subscription rate limiter grants a token.
	if err := w.limiter.Wait(ctx, sub.ID); err != nil {
		// ctx cancelled while waiting; hand the row back to the retry poller
		// without consuming a retry.
		w.reschedule(context.WithoutCancel(ctx), d, 0, err)
		return
	}

	res, err := w.prov.Deliver(ctx, sub, msg)
	elapsed := time.Since(start)

	// The outcome must be recorded even when shutdown cancelled the push.
	store := context.WithoutCancel(ctx)

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the push; it says nothing about the endpoint.
			log.Info("delivery interrupted by shutdown", zap.Error(err))
			w.reschedule(store, d, 0, err)
			return
		}
		log.Warn("endpoint delivery failed",
			zap.Error(err),
			zap.Int("retry_count", d.RetryCount),
		)
		w.handleFailure(store, d, err)
		return
	}

	if err := w.repo.MarkDelivered(store, d.ID, res.StatusCode, time.Now().UTC()); err != nil {
		// The endpoint has the message; releasing risks a duplicate push,
		// which subscribers already tolerate.
		log.Error("failed to mark as delivered", zap.Error(err))
		w.release(store, d.ID, log)
		return
	}

	w.hooks.OnDelivered(sub.ID, elapsed)
	log.Info("message delivered",
		zap.String("message_id", msg.ID),
		zap.Int("status_code", res.StatusCode),
		zap.Duration("latency", elapsed),
	)
}

// handleFailure either schedules a retry (if retries remain) or marks the
// delivery as permanently failed.
//
// Retry schedule:
//
//	attempt 0 → backoff[0]  (default 5 s)
//	attempt 1 → backoff[1]  (default 30 s)
//	attempt 2 → backoff[2]  (default 120 s)
//	attempt N ≥ len(backoff) → last backoff entry (clamped)
func (w *Worker) handleFailure(ctx context.Context, d *domain.Delivery, sendErr error) {
	if d.RetryCount >= d.MaxRetries {
		if err := w.repo.MarkFailed(ctx, d.ID, sendErr.Error()); err != nil {
			w.logger.Error("failed to mark delivery as failed",
				zap.String("delivery_id", d.ID), zap.Error(err))
		}
		w.hooks.OnFailed(d.SubscriptionID)
		return
	}
	w.reschedule(ctx, d, 1, sendErr)
	w.hooks.OnRetry(d.SubscriptionID)
}

// release hands a delivery the worker could not process back to the
// recovery worker. If the write fails too, the row stays queued or in flight
// until the recovery worker's stuck-age sweep picks it up.
func (w *Worker) release(ctx context.Context, deliveryID string, log *zap.Logger) {
	if err := w.repo.UpdateStatus(context.WithoutCancel(ctx), deliveryID, domain.DeliveryPending); err != nil {
		log.Error("failed to release delivery", zap.Error(err))
	}
}

// reschedule stores the next attempt time. consumed is the number of
// retries the failed attempt used up.
func (w *Worker) reschedule(ctx context.Context, d *domain.Delivery, consumed int, cause error) {
	nextRetry := time.Now().UTC().Add(Backoff(w.backoff, d.RetryCount))
	if err := w.repo.ScheduleRetry(ctx, d.ID, d.RetryCount+consumed, nextRetry, cause.Error()); err != nil {
		w.logger.Error("failed to schedule retry",
			zap.String("delivery_id", d.ID), zap.Error(err))
	}
}

// Backoff returns the delay before retry number attempt (0-based), clamped
// to the last configured step.
func Backoff(steps []time.Duration, attempt int) time.Duration {
	if len(steps) == 0 {
		return 0
	}
	if attempt >= len(steps) {
		attempt = len(steps) - 1
	}
	if attempt < 0 {
		attempt = 0
	}
	return steps[attempt]
}
