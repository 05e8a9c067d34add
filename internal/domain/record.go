package domain

// Attribute names of the expiring record store.
const (
	AttrID       = "id"
	AttrChannel  = "channel"
	TTLAttribute = "ttl"
)

// RecordKey is the composite key of a record in the expiring store.
type RecordKey struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

func (k RecordKey) Validate() error {
	if k.ID == "" || k.Channel == "" {
		return ErrMissingKey
	}
	return nil
}

func (k RecordKey) String() string {
	return k.ID + "/" + k.Channel
}
