package publisher

import (
	"context"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

// Publication is one message bound for the fan-out bus.
type Publication struct {
	// Key identifies the expired record.
	Key domain.RecordKey
	// DedupID is the change event ID. Redeliveries of the same record share it.
	DedupID    string
	Subject    string
	Body       string
	Attributes map[string]string
}

// Publisher abstracts the fan-out bus publish API.
// Mocking this interface in tests gives full control over publish outcomes
// without any network calls.
type Publisher interface {
	Publish(ctx context.Context, p Publication) (messageID string, err error)
}
