package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/queue"
	"github.com/notifyhub/deadman-switch/internal/repository"
)

// FanoutService accepts published messages for one topic and fans each out
// to every static subscription. Idempotency and delivery bookkeeping live
// here; HTTP handlers and workers depend on this service, not on each other.
type FanoutService struct {
	repo          repository.MessageRepository
	q             *queue.DeliveryQueue
	topicARN      string
	subscriptions []domain.Subscription
	maxRetries    int
	logger        *zap.Logger

	// onPublished is an optional metrics hook.
	onPublished func()
}

// Options carries the topic wiring injected by main.
type Options struct {
	TopicARN      string
	Subscriptions []domain.Subscription
	MaxRetries    int
	OnPublished   func()
}

func NewFanoutService(
	repo repository.MessageRepository,
	q *queue.DeliveryQueue,
	opts Options,
	logger *zap.Logger,
) *FanoutService {
	onPublished := opts.OnPublished
	if onPublished == nil {
		onPublished = func() {}
	}
	return &FanoutService{
		repo:          repo,
		q:             q,
		topicARN:      opts.TopicARN,
		subscriptions: opts.Subscriptions,
		maxRetries:    opts.MaxRetries,
		logger:        logger,
		onPublished:   onPublished,
	}
}

// Subscriptions returns the static subscriptions of the topic.
func (s *FanoutService) Subscriptions() []domain.Subscription {
	return s.subscriptions
}

// Publish validates, persists, and enqueues one delivery per subscription.
//
// Idempotency: if a key was supplied and a message with that key already
// exists, the existing message is returned and nothing is enqueued. The
// caller can distinguish a repeat by the returned flag.
func (s *FanoutService) Publish(
	ctx context.Context,
	req domain.PublishRequest,
	idempotencyKey string,
) (*domain.Message, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		existing, err := s.repo.GetMessageByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, false, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	msg, deliveries := s.build(req, idempotencyKey)

	if err := s.repo.CreateMessage(ctx, msg, deliveries); err != nil {
		// A concurrent publish with the same key won the insert.
		if errors.Is(err, domain.ErrConflict) && idempotencyKey != "" {
			existing, lookupErr := s.repo.GetMessageByIdempotencyKey(ctx, idempotencyKey)
			if lookupErr == nil {
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("persist message: %w", err)
	}

	for _, d := range deliveries {
		s.enqueue(ctx, d)
	}
	s.onPublished()
	return msg, false, nil
}

// GetMessage treats an id that is not a UUID as unknown; no such message can exist.
func (s *FanoutService) GetMessage(ctx context.Context, id string) (*domain.Message, []*domain.Delivery, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, domain.ErrNotFound
	}
	return s.repo.GetMessage(ctx, id)
}

func (s *FanoutService) ListDeliveries(ctx context.Context, filter domain.DeliveryFilter) ([]*domain.Delivery, int, error) {
	return s.repo.ListDeliveries(ctx, filter)
}

// ---- private helpers ----

func (s *FanoutService) build(req domain.PublishRequest, idempotencyKey string) (*domain.Message, []*domain.Delivery) {
	now := time.Now().UTC()
	msg := &domain.Message{
		ID:         uuid.New().String(),
		TopicARN:   s.topicARN,
		Subject:    req.Subject,
		Body:       req.Message,
		Attributes: req.Attributes,
		CreatedAt:  now,
	}
	if idempotencyKey != "" {
		msg.IdempotencyKey = &idempotencyKey
	}

	deliveries := make([]*domain.Delivery, len(s.subscriptions))
	for i, sub := range s.subscriptions {
		deliveries[i] = &domain.Delivery{
			ID:             uuid.New().String(),
			MessageID:      msg.ID,
			SubscriptionID: sub.ID,
			Endpoint:       sub.Endpoint,
			Status:         domain.DeliveryPending,
			MaxRetries:     s.maxRetries,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return msg, deliveries
}

// enqueue marks the delivery queued and places it on the fresh lane.
// The status is written first so a fast worker cannot have its terminal
// status overwritten. If the queue is full the delivery goes back to pending;
// the recovery worker picks it up once it is older than the recovery age.
func (s *FanoutService) enqueue(ctx context.Context, d *domain.Delivery) {
	if err := s.repo.UpdateStatus(ctx, d.ID, domain.DeliveryQueued); err != nil {
		s.logger.Error("failed to update status to queued", zap.String("delivery_id", d.ID), zap.Error(err))
		return
	}

	if err := s.q.Enqueue(queue.Item{
		DeliveryID:     d.ID,
		SubscriptionID: d.SubscriptionID,
		Lane:           queue.LaneFresh,
	}); err != nil {
		s.logger.Warn("queue full: delivery will remain pending",
			zap.String("delivery_id", d.ID), zap.Error(err))
		if err := s.repo.UpdateStatus(ctx, d.ID, domain.DeliveryPending); err != nil {
			s.logger.Error("failed to reset status to pending", zap.String("delivery_id", d.ID), zap.Error(err))
		}
		return
	}
	d.Status = domain.DeliveryQueued
}
