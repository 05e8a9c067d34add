package processor

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/publisher"
)

// Subject of every published expiry notification.
const Subject = "record expired"

// ParseRecord converts one raw feed record into a ChangeEvent.
func ParseRecord(r events.DynamoDBEventRecord) (domain.ChangeEvent, error) {
	key, err := parseKey(r.Change.Keys)
	if err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("record %s: %w", r.EventID, err)
	}

	eventType := domain.EventType(r.EventName)
	if !eventType.IsValid() {
		return domain.ChangeEvent{}, fmt.Errorf("record %s: %w: %q", r.EventID, domain.ErrInvalidEvent, r.EventName)
	}

	e := domain.ChangeEvent{
		EventID:        r.EventID,
		Type:           eventType,
		Key:            key,
		SequenceNumber: r.Change.SequenceNumber,
		CreatedAt:      r.Change.ApproximateCreationDateTime.Time.UTC(),
	}
	if id := r.UserIdentity; id != nil {
		e.ExpiredByTTL = id.Type == domain.TTLPrincipalType && id.PrincipalID == domain.TTLPrincipalID
	}
	return e, nil
}

func parseKey(keys map[string]events.DynamoDBAttributeValue) (domain.RecordKey, error) {
	var key domain.RecordKey
	if av, ok := keys[domain.AttrID]; ok && av.DataType() == events.DataTypeString {
		key.ID = av.String()
	}
	if av, ok := keys[domain.AttrChannel]; ok && av.DataType() == events.DataTypeString {
		key.Channel = av.String()
	}
	return key, key.Validate()
}

// BuildPublications maps a batch onto the ordered list of publish operations.
// Records rejected by filter are skipped and counted; batch order is kept.
func BuildPublications(records []events.DynamoDBEventRecord, filter domain.EventFilter) ([]publisher.Publication, int, error) {
	pubs := make([]publisher.Publication, 0, len(records))
	skipped := 0
	for _, r := range records {
		e, err := ParseRecord(r)
		if err != nil {
			return nil, skipped, err
		}
		if !filter.Accepts(e) {
			skipped++
			continue
		}
		pub, err := newPublication(e)
		if err != nil {
			return nil, skipped, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, skipped, nil
}

func newPublication(e domain.ChangeEvent) (publisher.Publication, error) {
	body, err := json.Marshal(domain.NewExpiryNotification(e))
	if err != nil {
		return publisher.Publication{}, fmt.Errorf("marshal notification: %w", err)
	}
	return publisher.Publication{
		Key:     e.Key,
		DedupID: e.EventID,
		Subject: Subject,
		Body:    string(body),
		Attributes: map[string]string{
			"event_name": string(e.Type),
			"event_id":   e.EventID,
		},
	}, nil
}
