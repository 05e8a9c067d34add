package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Header names set on every push, matching the managed bus.
const (
	HeaderMessageType     = "x-amz-sns-message-type"
	HeaderMessageID       = "x-amz-sns-message-id"
	HeaderTopicARN        = "x-amz-sns-topic-arn"
	HeaderSubscriptionARN = "x-amz-sns-subscription-arn"
)

// StatusError is returned when the endpoint answers outside 2xx.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected endpoint status: %d", e.StatusCode)
}

// HTTPSProvider pushes envelopes with a bounded per-request timeout.
type HTTPSProvider struct {
	httpClient *http.Client
}

func NewHTTPSProvider(timeout time.Duration) *HTTPSProvider {
	return &HTTPSProvider{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewHTTPSProviderWithClient lets tests supply a client trusting httptest TLS.
func NewHTTPSProviderWithClient(c *http.Client) *HTTPSProvider {
	return &HTTPSProvider{httpClient: c}
}

// Deliver posts the message envelope to the subscription endpoint.
// Any 2xx answer counts as delivered.
func (p *HTTPSProvider) Deliver(ctx context.Context, sub domain.Subscription, msg *domain.Message) (*Result, error) {
	body, err := json.Marshal(NewEnvelope(msg))
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	req.Header.Set(HeaderMessageType, "Notification")
	req.Header.Set(HeaderMessageID, msg.ID)
	req.Header.Set(HeaderTopicARN, msg.TopicARN)
	req.Header.Set(HeaderSubscriptionARN, sub.ID)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return &Result{StatusCode: resp.StatusCode}, nil
}

// NewEnvelope builds the notification envelope for msg.
func NewEnvelope(msg *domain.Message) Envelope {
	env := Envelope{
		Type:      "Notification",
		MessageID: msg.ID,
		TopicARN:  msg.TopicARN,
		Subject:   msg.Subject,
		Message:   msg.Body,
		Timestamp: msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if len(msg.Attributes) > 0 {
		env.MessageAttributes = make(map[string]EnvelopeAttribute, len(msg.Attributes))
		for k, v := range msg.Attributes {
			env.MessageAttributes[k] = EnvelopeAttribute{Type: "String", Value: v}
		}
	}
	return env
}

// compile-time check that HTTPSProvider implements Provider
var _ Provider = (*HTTPSProvider)(nil)
