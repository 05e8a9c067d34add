package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/repository"
	"github.com/notifyhub/deadman-switch/internal/service"
)

var subscription = domain.Subscription{
	ID:       "sub-1",
	TopicARN: "arn:local:sns:deadman-switch",
	Protocol: domain.ProtocolHTTPS,
	Endpoint: "https://pipedream.com",
}

func newService(queueSize int) (*service.FanoutService, *repository.MockMessageRepository, *queue.DeliveryQueue, *int) {
	repo := repository.NewMockMessageRepository()
	q := queue.New(queueSize)
	published := 0
	svc := service.NewFanoutService(repo, q, service.Options{
		TopicARN:      subscription.TopicARN,
		Subscriptions: []domain.Subscription{subscription},
		MaxRetries:    3,
		OnPublished:   func() { published++ },
	}, zap.NewNop())
	return svc, repo, q, &published
}

var validReq = domain.PublishRequest{
	Subject:    "record expired",
	Message:    `{"id":"t1","channel":"c1"}`,
	Attributes: map[string]string{"id": "t1", "channel": "c1"},
}

func TestFanoutService_Publish(t *testing.T) {
	svc, repo, q, published := newService(10)
	ctx := context.Background()

	msg, isDuplicate, err := svc.Publish(ctx, validReq, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isDuplicate {
		t.Fatal("expected isDuplicate=false for a new message")
	}
	if msg.ID == "" || msg.TopicARN != subscription.TopicARN {
		t.Fatalf("unexpected message %+v", msg)
	}
	if *published != 1 {
		t.Fatalf("expected publish hook once, got %d", *published)
	}

	_, deliveries, err := repo.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected exactly one delivery for one subscription, got %d", len(deliveries))
	}
	d := deliveries[0]
	if d.Endpoint != subscription.Endpoint || d.Status != domain.DeliveryQueued || d.MaxRetries != 3 {
		t.Fatalf("unexpected delivery %+v", d)
	}

	fresh, _ := q.Depths()
	if fresh != 1 {
		t.Fatalf("expected one queued item, got %d", fresh)
	}
}

func TestFanoutService_Publish_InvalidRequest(t *testing.T) {
	svc, _, _, _ := newService(10)

	_, _, err := svc.Publish(context.Background(), domain.PublishRequest{}, "")
	if err != domain.ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestFanoutService_Publish_IdempotencyReturnsDuplicate(t *testing.T) {
	svc, _, q, published := newService(10)
	ctx := context.Background()

	first, isDup, err := svc.Publish(ctx, validReq, "evt-1")
	if err != nil || isDup {
		t.Fatalf("first call: err=%v isDup=%v", err, isDup)
	}

	second, isDup, err := svc.Publish(ctx, validReq, "evt-1")
	if err != nil {
		t.Fatalf("second call: unexpected error: %v", err)
	}
	if !isDup {
		t.Fatal("expected isDuplicate=true for repeated idempotency key")
	}
	if second.ID != first.ID {
		t.Fatal("expected same message ID on duplicate")
	}
	if fresh, _ := q.Depths(); fresh != 1 {
		t.Fatalf("expected duplicate not to enqueue again, depth=%d", fresh)
	}
	if *published != 1 {
		t.Fatalf("expected publish hook once, got %d", *published)
	}
}

func TestFanoutService_Publish_QueueFullLeavesPending(t *testing.T) {
	svc, repo, _, _ := newService(1)
	ctx := context.Background()

	if _, _, err := svc.Publish(ctx, validReq, ""); err != nil {
		t.Fatal(err)
	}
	msg, _, err := svc.Publish(ctx, validReq, "")
	if err != nil {
		t.Fatalf("a full queue must not fail the publish: %v", err)
	}

	_, deliveries, _ := repo.GetMessage(ctx, msg.ID)
	if deliveries[0].Status != domain.DeliveryPending {
		t.Fatalf("expected pending delivery, got %s", deliveries[0].Status)
	}
}

func TestFanoutService_Publish_PersistError(t *testing.T) {
	svc, repo, _, _ := newService(10)
	repo.CreateErr = errors.New("db down")

	_, _, err := svc.Publish(context.Background(), validReq, "")
	if err == nil || !errors.Is(err, repo.CreateErr) {
		t.Fatalf("expected wrapped persist error, got %v", err)
	}
}

func TestFanoutService_GetMessage_NotFound(t *testing.T) {
	svc, _, _, _ := newService(10)
	_, _, err := svc.GetMessage(context.Background(), uuid.NewString())
	if err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// lookupGuard fails the test if a message lookup reaches storage.
type lookupGuard struct {
	*repository.MockMessageRepository
	t *testing.T
}

func (g lookupGuard) GetMessage(context.Context, string) (*domain.Message, []*domain.Delivery, error) {
	g.t.Error("malformed id reached the repository")
	return nil, nil, errors.New("invalid input syntax for type uuid")
}

func TestFanoutService_GetMessage_MalformedID(t *testing.T) {
	repo := lookupGuard{MockMessageRepository: repository.NewMockMessageRepository(), t: t}
	svc := service.NewFanoutService(repo, queue.New(10), service.Options{
		TopicARN:      subscription.TopicARN,
		Subscriptions: []domain.Subscription{subscription},
		MaxRetries:    3,
	}, zap.NewNop())

	for _, id := range []string{"does-not-exist", "", "1234"} {
		if _, _, err := svc.GetMessage(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetMessage(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}
