package domain_test

import (
	"strings"
	"testing"

	"github.com/notifyhub/deadman-switch/internal/domain"
)

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://pipedream.com", true},
		{"https://hooks.example.com/path?x=1", true},
		{"http://pipedream.com", false},
		{"pipedream.com", false},
		{"https://", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			err := domain.ValidateEndpoint(tc.url)
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err != domain.ErrInvalidEndpoint {
				t.Fatalf("expected ErrInvalidEndpoint, got %v", err)
			}
		})
	}
}

func TestPublishRequest_Validate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		r := domain.PublishRequest{Message: `{"id":"t1"}`}
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty message", func(t *testing.T) {
		r := domain.PublishRequest{}
		if err := r.Validate(); err != domain.ErrEmptyMessage {
			t.Fatalf("expected ErrEmptyMessage, got %v", err)
		}
	})

	t.Run("message at max size passes", func(t *testing.T) {
		r := domain.PublishRequest{Message: strings.Repeat("x", domain.MaxMessageBytes)}
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error at max size, got %v", err)
		}
	})

	t.Run("message too large", func(t *testing.T) {
		r := domain.PublishRequest{Message: strings.Repeat("x", domain.MaxMessageBytes+1)}
		if err := r.Validate(); err != domain.ErrEmptyMessage {
			t.Fatalf("expected ErrEmptyMessage, got %v", err)
		}
	})
}

func TestRecordKey_Validate(t *testing.T) {
	if err := (domain.RecordKey{ID: "t1"}).Validate(); err != domain.ErrMissingKey {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if err := (domain.RecordKey{ID: "t1", Channel: "c1"}).Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestNewSubscription(t *testing.T) {
	const topic = "arn:local:sns:test"
	a, err := domain.NewSubscription(topic, "https://hooks.example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, _ := domain.NewSubscription(topic, "https://hooks.example.com/a")
	other, _ := domain.NewSubscription(topic, "https://hooks.example.com/b")

	if a.ID != again.ID {
		t.Errorf("subscription id not stable: %q vs %q", a.ID, again.ID)
	}
	if a.ID == other.ID {
		t.Errorf("different endpoints share id %q", a.ID)
	}
	if !strings.HasPrefix(a.ID, topic+":") || a.Protocol != domain.ProtocolHTTPS {
		t.Errorf("unexpected subscription: %+v", a)
	}

	if _, err := domain.NewSubscription(topic, "http://insecure.example.com"); err != domain.ErrInvalidEndpoint {
		t.Errorf("expected ErrInvalidEndpoint, got %v", err)
	}
}
