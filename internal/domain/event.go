package domain

import (
	"fmt"
	"time"
)

// EventType is the mutation kind carried by a change-feed record.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventModify EventType = "MODIFY"
	EventRemove EventType = "REMOVE"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventInsert, EventModify, EventRemove:
		return true
	}
	return false
}

// TTL deletions are performed by the store itself and carry this identity.
const (
	TTLPrincipalID   = "dynamodb.amazonaws.com"
	TTLPrincipalType = "Service"
)

// ChangeEvent is one record of the change feed, reduced to what the
// processor needs. The feed carries keys only, never the item body.
type ChangeEvent struct {
	EventID        string
	Type           EventType
	Key            RecordKey
	ExpiredByTTL   bool
	SequenceNumber string
	CreatedAt      time.Time
}

// EventFilter selects which change events become notifications.
type EventFilter string

const (
	// FilterAll forwards every record the feed delivers.
	FilterAll EventFilter = "all"
	// FilterRemove forwards REMOVE records only.
	FilterRemove EventFilter = "remove"
	// FilterTTL forwards REMOVE records issued by the store's TTL sweeper only.
	FilterTTL EventFilter = "ttl"
)

func ParseEventFilter(s string) (EventFilter, error) {
	switch f := EventFilter(s); f {
	case FilterAll, FilterRemove, FilterTTL:
		return f, nil
	case "":
		return FilterRemove, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Accepts reports whether e passes the filter.
func (f EventFilter) Accepts(e ChangeEvent) bool {
	switch f {
	case FilterAll:
		return true
	case FilterTTL:
		return e.Type == EventRemove && e.ExpiredByTTL
	default:
		return e.Type == EventRemove
	}
}

// ExpiryNotification is the payload published to the fan-out bus for one
// change event. It always identifies the expired record by its key.
type ExpiryNotification struct {
	ID           string    `json:"id"`
	Channel      string    `json:"channel"`
	EventID      string    `json:"event_id"`
	EventType    EventType `json:"event_type"`
	ExpiredByTTL bool      `json:"expired_by_ttl"`
	ObservedAt   time.Time `json:"observed_at"`
}

// NewExpiryNotification derives the notification for e.
func NewExpiryNotification(e ChangeEvent) ExpiryNotification {
	return ExpiryNotification{
		ID:           e.Key.ID,
		Channel:      e.Key.Channel,
		EventID:      e.EventID,
		EventType:    e.Type,
		ExpiredByTTL: e.ExpiredByTTL,
		ObservedAt:   e.CreatedAt,
	}
}

func (n ExpiryNotification) Key() RecordKey {
	return RecordKey{ID: n.ID, Channel: n.Channel}
}
