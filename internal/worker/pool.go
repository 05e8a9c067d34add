package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/delivery"
	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/ratelimiter"
	"github.com/notifyhub/deadman-switch/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnDelivered func(subscriptionID string, latency time.Duration)
	OnFailed    func(subscriptionID string)
	OnRetry     func(subscriptionID string)
}

// PoolConfig sizes the pool and sets the retry schedule.
type PoolConfig struct {
	Workers      int
	RetryBackoff []time.Duration
}

// Pool manages the lifecycle of all delivery workers.
// All workers share the same delivery queue.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.Workers identical workers.
func NewPool(
	cfg PoolConfig,
	subs []domain.Subscription,
	q *queue.DeliveryQueue,
	repo repository.MessageRepository,
	prov delivery.Provider,
	limiter *ratelimiter.EndpointLimiters,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	workers := make([]*Worker, cfg.Workers)
	for i := range workers {
		workers[i] = NewWorker(
			i, subs, q, repo, prov, limiter,
			cfg.RetryBackoff,
			logger.With(zap.Int("worker_id", i)),
			hooks,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight deliveries finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
