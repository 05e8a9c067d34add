package delivery

import (
	"context"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Envelope is the JSON body pushed to a subscribed endpoint. Its shape follows
// the managed bus's HTTPS notification format so consumers can handle both.
type Envelope struct {
	Type              string                       `json:"Type"`
	MessageID         string                       `json:"MessageId"`
	TopicARN          string                       `json:"TopicArn"`
	Subject           string                       `json:"Subject,omitempty"`
	Message           string                       `json:"Message"`
	Timestamp         string                       `json:"Timestamp"`
	MessageAttributes map[string]EnvelopeAttribute `json:"MessageAttributes,omitempty"`
}

// EnvelopeAttribute is one typed message attribute.
type EnvelopeAttribute struct {
	Type  string `json:"Type"`
	Value string `json:"Value"`
}

// Result reports a completed push.
type Result struct {
	StatusCode int
}

// Provider abstracts delivery to a subscribed endpoint.
// Mocking this interface in tests gives full control over endpoint behaviour
// without making real HTTP calls.
type Provider interface {
	Deliver(ctx context.Context, sub domain.Subscription, msg *domain.Message) (*Result, error)
}
