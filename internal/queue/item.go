package queue

// Lane selects which buffer an item waits in.
type Lane int

const (
	// LaneFresh carries first delivery attempts.
	LaneFresh Lane = iota
	// LaneRetry carries re-enqueued retries and recovered deliveries.
	LaneRetry
)

// Item is the minimal data placed on the queue.
// Workers fetch the full Delivery from the DB using the ID,
// keeping the queue lightweight and the stored state authoritative.
type Item struct {
	DeliveryID     string
	SubscriptionID string
	Lane           Lane
}
