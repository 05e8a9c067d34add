package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// publishResponse maps the notifier's publish response body.
type publishResponse struct {
	ID string `json:"id"`
}

// HTTPPublisher publishes to the self-hosted notifier's publish endpoint.
// The endpoint URL is injected from config so tests can point to httptest.
type HTTPPublisher struct {
	url        string
	httpClient *http.Client
}

func NewHTTPPublisher(url string, timeout time.Duration) *HTTPPublisher {
	return &HTTPPublisher{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Publish posts the message and uses the change event ID as the idempotency
// key, so a redelivered record maps onto the already accepted message.
func (p *HTTPPublisher) Publish(ctx context.Context, pub Publication) (string, error) {
	attrs := make(map[string]string, len(pub.Attributes)+2)
	for k, v := range pub.Attributes {
		attrs[k] = v
	}
	attrs["id"] = pub.Key.ID
	attrs["channel"] = pub.Key.Channel

	body, err := json.Marshal(domain.PublishRequest{
		Subject:    pub.Subject,
		Message:    pub.Body,
		Attributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if pub.DedupID != "" {
		req.Header.Set("Idempotency-Key", pub.DedupID)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return "", fmt.Errorf("unexpected notifier status: %d", resp.StatusCode)
	}

	var out publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ID, nil
}

// compile-time check that HTTPPublisher implements Publisher
var _ Publisher = (*HTTPPublisher)(nil)
