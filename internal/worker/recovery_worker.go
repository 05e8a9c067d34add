package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/repository"
)

// RecoveryWorker enqueues deliveries that were persisted but never queued,
// either because the queue was full at publish time or because the process
// stopped between the insert and the enqueue. It also picks up deliveries a
// worker left queued or in flight after a storage error.
type RecoveryWorker struct {
	repo     repository.MessageRepository
	q        *queue.DeliveryQueue
	interval time.Duration
	minAge   time.Duration
	stuckAge time.Duration
	logger   *zap.Logger
}

// NewRecoveryWorker only picks up pending deliveries older than minAge so it
// does not race the publish path. stuckAge must exceed the longest time a
// healthy delivery stays queued or in flight.
func NewRecoveryWorker(
	repo repository.MessageRepository,
	q *queue.DeliveryQueue,
	interval, minAge, stuckAge time.Duration,
	logger *zap.Logger,
) *RecoveryWorker {
	return &RecoveryWorker{
		repo: repo, q: q, interval: interval,
		minAge: minAge, stuckAge: stuckAge, logger: logger,
	}
}

// ReclaimOrphans resets deliveries that were queued or in flight when the
// previous process stopped, since the in-memory queue did not survive.
// Call once at start-up before the pool and the HTTP server start; the
// reclaimed rows are enqueued by the first poll.
func (rw *RecoveryWorker) ReclaimOrphans(ctx context.Context) error {
	n, err := rw.repo.ResetOrphaned(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		rw.logger.Info("reclaimed orphaned deliveries", zap.Int64("count", n))
	}
	return nil
}

func (rw *RecoveryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("recovery worker started",
		zap.Duration("interval", rw.interval),
		zap.Duration("min_age", rw.minAge),
		zap.Duration("stuck_age", rw.stuckAge),
	)

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("recovery worker stopping")
			return
		case <-ticker.C:
			rw.poll(ctx)
		}
	}
}

func (rw *RecoveryWorker) poll(ctx context.Context) {
	now := time.Now().UTC()
	stale, err := rw.repo.FindStalePending(ctx, now.Add(-rw.minAge), now.Add(-rw.stuckAge))
	if err != nil {
		rw.logger.Error("recovery poll error", zap.Error(err))
		return
	}
	n := requeue(ctx, rw.repo, rw.q, stale, rw.logger)
	if n > 0 {
		rw.logger.Info("recovered pending deliveries", zap.Int("count", n))
	}
}
