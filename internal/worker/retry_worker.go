package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/repository"
)

// RetryWorker polls the database for deliveries whose next_retry_at is in
// the past and re-enqueues them on the retry lane.
//
// Scheduled retry times are persisted, so retries survive restarts.
type RetryWorker struct {
	repo     repository.MessageRepository
	q        *queue.DeliveryQueue
	interval time.Duration
	logger   *zap.Logger
}

func NewRetryWorker(
	repo repository.MessageRepository,
	q *queue.DeliveryQueue,
	interval time.Duration,
	logger *zap.Logger,
) *RetryWorker {
	return &RetryWorker{repo: repo, q: q, interval: interval, logger: logger}
}

// Run ticks every interval and re-enqueues any due retries.
// Stops cleanly when ctx is cancelled.
func (rw *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("retry worker started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("retry worker stopping")
			return
		case <-ticker.C:
			rw.poll(ctx)
		}
	}
}

func (rw *RetryWorker) poll(ctx context.Context) {
	deliveries, err := rw.repo.FindDueRetries(ctx)
	if err != nil {
		rw.logger.Error("retry poll error", zap.Error(err))
		return
	}
	n := requeue(ctx, rw.repo, rw.q, deliveries, rw.logger)
	if n > 0 {
		rw.logger.Info("re-enqueued due retries", zap.Int("count", n))
	}
}

// requeue marks each delivery queued and puts it on the retry lane.
// It stops at the first full-queue error, restoring that delivery's status;
// the rest are picked up next tick.
func requeue(
	ctx context.Context,
	repo repository.MessageRepository,
	q *queue.DeliveryQueue,
	deliveries []*domain.Delivery,
	logger *zap.Logger,
) int {
	enqueued := 0
	for _, d := range deliveries {
		if err := repo.UpdateStatus(ctx, d.ID, domain.DeliveryQueued); err != nil {
			logger.Error("failed to update status before re-enqueue",
				zap.String("delivery_id", d.ID), zap.Error(err))
			continue
		}

		if err := q.Enqueue(queue.Item{
			DeliveryID:     d.ID,
			SubscriptionID: d.SubscriptionID,
			Lane:           queue.LaneRetry,
		}); err != nil {
			logger.Warn("could not re-enqueue delivery",
				zap.String("delivery_id", d.ID), zap.Error(err))
			if err := repo.UpdateStatus(ctx, d.ID, d.Status); err != nil {
				logger.Error("failed to restore status",
					zap.String("delivery_id", d.ID), zap.Error(err))
			}
			break
		}
		enqueued++
	}
	return enqueued
}
