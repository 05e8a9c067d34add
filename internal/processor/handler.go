package processor

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/publisher"
)

// Handler processes one change-feed batch per invocation.
type Handler struct {
	pub    publisher.Publisher
	filter domain.EventFilter
	logger *zap.Logger
}

func NewHandler(pub publisher.Publisher, filter domain.EventFilter, logger *zap.Logger) *Handler {
	return &Handler{pub: pub, filter: filter, logger: logger}
}

// Handle publishes the batch sequentially in feed order and stops at the
// first failure. A non-nil error makes the runtime report the invocation
// as failed, which hands the batch back to the feed's retry policy.
func (h *Handler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	pubs, skipped, err := BuildPublications(event.Records, h.filter)
	if err != nil {
		h.logger.Error("invalid change batch", zap.Int("records", len(event.Records)), zap.Error(err))
		return err
	}

	for i, pub := range pubs {
		msgID, err := h.pub.Publish(ctx, pub)
		if err != nil {
			h.logger.Warn("publish failed",
				zap.String("record_id", pub.Key.ID),
				zap.String("record_channel", pub.Key.Channel),
				zap.String("event_id", pub.DedupID),
				zap.Int("published", i),
				zap.Error(err),
			)
			return fmt.Errorf("publish %s: %w", pub.Key, err)
		}
		h.logger.Debug("notification published",
			zap.String("record_id", pub.Key.ID),
			zap.String("record_channel", pub.Key.Channel),
			zap.String("message_id", msgID),
		)
	}

	h.logger.Info("change batch processed",
		zap.Int("records", len(event.Records)),
		zap.Int("published", len(pubs)),
		zap.Int("skipped", skipped),
	)
	return nil
}
