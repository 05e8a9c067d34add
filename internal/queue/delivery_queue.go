package queue

import (
	"context"
	"fmt"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// DeliveryQueue holds pending deliveries in two buffered lanes.
//
// Fresh attempts are served before retries so that one endpoint outage
// replaying its backlog cannot delay notifications for newly expired records.
// The retry lane is sized at half the fresh lane.
type DeliveryQueue struct {
	fresh chan Item
	retry chan Item
}

// New creates a queue whose fresh lane holds size items.
func New(size int) *DeliveryQueue {
	retry := size / 2
	if retry < 1 {
		retry = 1
	}
	return &DeliveryQueue{
		fresh: make(chan Item, size),
		retry: make(chan Item, retry),
	}
}

// Enqueue places an item on its lane.
// It is non-blocking: if the lane is full, ErrQueueFull is returned
// immediately rather than blocking the caller (the HTTP handler or a poller).
func (q *DeliveryQueue) Enqueue(item Item) error {
	var lane chan Item
	switch item.Lane {
	case LaneFresh:
		lane = q.fresh
	case LaneRetry:
		lane = q.retry
	default:
		return fmt.Errorf("unknown lane %d", item.Lane)
	}

	select {
	case lane <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
//
// The fresh lane is drained first with a non-blocking select. Only when it
// is empty does the worker enter a fair blocking select over both lanes and
// the done signal, so it sleeps instead of spinning.
//
// Returns (Item{}, false) when ctx is cancelled (graceful shutdown signal).
func (q *DeliveryQueue) Dequeue(ctx context.Context) (Item, bool) {
	select {
	case item := <-q.fresh:
		return item, true
	default:
	}

	select {
	case item := <-q.fresh:
		return item, true
	case item := <-q.retry:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depths returns the current number of items waiting in each lane.
func (q *DeliveryQueue) Depths() (fresh, retry int) {
	return len(q.fresh), len(q.retry)
}
