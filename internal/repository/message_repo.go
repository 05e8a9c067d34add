package repository

import (
	"context"
	"time"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// MessageRepository defines all persistence operations of the fan-out bus.
// The pgx implementation is in pg_message_repo.go.
// Tests use a hand-written mock (mock_message_repo.go).
type MessageRepository interface {
	// CreateMessage stores msg and its deliveries atomically. It returns
	// domain.ErrConflict when the idempotency key is already taken.
	CreateMessage(ctx context.Context, msg *domain.Message, deliveries []*domain.Delivery) error
	GetMessage(ctx context.Context, id string) (*domain.Message, []*domain.Delivery, error)
	GetMessageByIdempotencyKey(ctx context.Context, key string) (*domain.Message, error)

	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	ListDeliveries(ctx context.Context, filter domain.DeliveryFilter) ([]*domain.Delivery, int, error)
	UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
	MarkDelivered(ctx context.Context, id string, responseCode int, deliveredAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error
	FindDueRetries(ctx context.Context) ([]*domain.Delivery, error)
	// FindStalePending returns pending deliveries created before
	// pendingBefore, plus queued or in-flight deliveries whose status has
	// not changed since stuckBefore.
	FindStalePending(ctx context.Context, pendingBefore, stuckBefore time.Time) ([]*domain.Delivery, error)
	// ResetOrphaned moves queued and in-flight deliveries back to pending.
	// Only safe at start-up, before any worker runs.
	ResetOrphaned(ctx context.Context) (int64, error)
}
