//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/notifyhub/deadman-switch/internal/db"
	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/repository"
)

func setupRepo(t *testing.T) repository.MessageRepository {
	t.Helper()
	ctx := context.Background()

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("deadman"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	url, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	if _, err := db.Migrate(url, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := db.Connect(ctx, db.PoolConfig{DatabaseURL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	return repository.NewPgMessageRepository(pool)
}

func newMessage(key string) (*domain.Message, []*domain.Delivery) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	msg := &domain.Message{
		ID:         uuid.New().String(),
		TopicARN:   "arn:local:sns:deadman-switch",
		Subject:    "record expired",
		Body:       `{"id":"t1","channel":"c1"}`,
		Attributes: map[string]string{"id": "t1", "channel": "c1"},
		CreatedAt:  now,
	}
	if key != "" {
		msg.IdempotencyKey = &key
	}
	d := &domain.Delivery{
		ID:             uuid.New().String(),
		MessageID:      msg.ID,
		SubscriptionID: "sub-1",
		Endpoint:       "https://pipedream.com",
		Status:         domain.DeliveryPending,
		MaxRetries:     3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return msg, []*domain.Delivery{d}
}

func TestPgMessageRepository_Lifecycle(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	msg, deliveries := newMessage("evt-1")
	if err := repo.CreateMessage(ctx, msg, deliveries); err != nil {
		t.Fatalf("create: %v", err)
	}

	dupMsg, dupDeliveries := newMessage("evt-1")
	if err := repo.CreateMessage(ctx, dupMsg, dupDeliveries); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for reused idempotency key, got %v", err)
	}

	byKey, err := repo.GetMessageByIdempotencyKey(ctx, "evt-1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.ID != msg.ID || byKey.Attributes["channel"] != "c1" {
		t.Fatalf("unexpected message %+v", byKey)
	}

	d := deliveries[0]
	next := time.Now().UTC().Add(-time.Second)
	if err := repo.ScheduleRetry(ctx, d.ID, 1, next, "502"); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	due, err := repo.FindDueRetries(ctx)
	if err != nil {
		t.Fatalf("find due retries: %v", err)
	}
	if len(due) != 1 || due[0].ID != d.ID || due[0].RetryCount != 1 {
		t.Fatalf("expected the retrying delivery to be due, got %+v", due)
	}

	if err := repo.MarkDelivered(ctx, d.ID, 200, time.Now().UTC()); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	_, got, err := repo.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if len(got) != 1 || got[0].Status != domain.DeliveryDelivered || got[0].ErrorMessage != nil {
		t.Fatalf("unexpected deliveries %+v", got)
	}

	status := domain.DeliveryDelivered
	list, total, err := repo.ListDeliveries(ctx, domain.DeliveryFilter{Status: &status, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("expected one delivered row, got total=%d len=%d", total, len(list))
	}
}

func TestPgMessageRepository_FindStalePending(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	msg, deliveries := newMessage("")
	deliveries[0].CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := repo.CreateMessage(ctx, msg, deliveries); err != nil {
		t.Fatalf("create: %v", err)
	}

	stale, err := repo.FindStalePending(ctx, time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale delivery, got %d", len(stale))
	}

	// A row that just went in flight is not stuck yet, but it is once the
	// cutoff passes its last status change.
	if err := repo.UpdateStatus(ctx, deliveries[0].ID, domain.DeliveryInFlight); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale, err = repo.FindStalePending(ctx, time.Now().UTC(), time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stuck delivery yet, got %d", len(stale))
	}
	stale, err = repo.FindStalePending(ctx, time.Now().UTC(), time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("find stale: %v", err)
	}
	if len(stale) != 1 || stale[0].Status != domain.DeliveryInFlight {
		t.Fatalf("expected the in-flight delivery, got %+v", stale)
	}

	if _, _, err := repo.GetMessage(ctx, uuid.New().String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPgMessageRepository_ResetOrphaned(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	msg, deliveries := newMessage("")
	if err := repo.CreateMessage(ctx, msg, deliveries); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdateStatus(ctx, deliveries[0].ID, domain.DeliveryInFlight); err != nil {
		t.Fatalf("update: %v", err)
	}

	n, err := repo.ResetOrphaned(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reset row, got %d", n)
	}
	got, err := repo.GetDelivery(ctx, deliveries[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.DeliveryPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
}
