package domain

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// MaxMessageBytes mirrors the managed bus payload limit.
const MaxMessageBytes = 256 * 1024

// Protocol of a subscription. Only HTTPS push is supported.
type Protocol string

const ProtocolHTTPS Protocol = "https"

// Subscription binds the topic to one push endpoint. Subscriptions are
// static: they come from configuration at start-up.
type Subscription struct {
	ID       string   `json:"id"`
	TopicARN string   `json:"topic_arn"`
	Protocol Protocol `json:"protocol"`
	Endpoint string   `json:"endpoint"`
}

// NewSubscription builds an HTTPS subscription whose ID is derived from the
// topic and endpoint, so it is stable across restarts.
func NewSubscription(topicARN, endpoint string) (Subscription, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return Subscription{}, err
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(topicARN+"|"+endpoint))
	return Subscription{
		ID:       topicARN + ":" + id.String(),
		TopicARN: topicARN,
		Protocol: ProtocolHTTPS,
		Endpoint: endpoint,
	}, nil
}

// ValidateEndpoint accepts absolute https URLs with a host.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ErrInvalidEndpoint
	}
	return nil
}

// DeliveryStatus tracks the lifecycle of one message-to-endpoint delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryQueued    DeliveryStatus = "queued"
	DeliveryInFlight  DeliveryStatus = "in_flight"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRetrying  DeliveryStatus = "retrying"
	DeliveryFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryQueued, DeliveryInFlight,
		DeliveryDelivered, DeliveryRetrying, DeliveryFailed:
		return true
	}
	return false
}

// Message is one publish call accepted by the bus.
type Message struct {
	ID             string            `json:"id"`
	TopicARN       string            `json:"topic_arn"`
	Subject        string            `json:"subject,omitempty"`
	Body           string            `json:"message"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Delivery is the attempt state of pushing one message to one subscription.
type Delivery struct {
	ID             string         `json:"id"`
	MessageID      string         `json:"message_id"`
	SubscriptionID string         `json:"subscription_id"`
	Endpoint       string         `json:"endpoint"`
	Status         DeliveryStatus `json:"status"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
	NextRetryAt    *time.Time     `json:"next_retry_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ResponseCode   *int           `json:"response_code,omitempty"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// PublishRequest is the inbound payload of the publish endpoint.
type PublishRequest struct {
	Subject    string            `json:"subject,omitempty"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (r *PublishRequest) Validate() error {
	if r.Message == "" || len(r.Message) > MaxMessageBytes {
		return ErrEmptyMessage
	}
	return nil
}

// DeliveryFilter holds query parameters for paginated delivery listing.
type DeliveryFilter struct {
	Status    *DeliveryStatus
	MessageID *string
	Page      int
	Limit     int
}
