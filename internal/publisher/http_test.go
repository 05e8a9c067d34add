package publisher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/notifyhub/deadman-switch/internal/domain"
	"github.com/notifyhub/deadman-switch/internal/publisher"
)

func TestHTTPPublisher_Publish(t *testing.T) {
	var (
		gotKey string
		gotReq domain.PublishRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"m-42"}`))
	}))
	defer srv.Close()

	p := publisher.NewHTTPPublisher(srv.URL, time.Second)
	id, err := p.Publish(context.Background(), publisher.Publication{
		Key:     domain.RecordKey{ID: "t1", Channel: "c1"},
		DedupID: "evt-1",
		Body:    `{"id":"t1","channel":"c1"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "m-42" {
		t.Fatalf("expected id m-42, got %q", id)
	}
	if gotKey != "evt-1" {
		t.Fatalf("expected Idempotency-Key evt-1, got %q", gotKey)
	}
	if gotReq.Attributes["id"] != "t1" || gotReq.Attributes["channel"] != "c1" {
		t.Fatalf("expected key attributes, got %v", gotReq.Attributes)
	}
}

func TestHTTPPublisher_DuplicateIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"m-1"}`))
	}))
	defer srv.Close()

	p := publisher.NewHTTPPublisher(srv.URL, time.Second)
	if _, err := p.Publish(context.Background(), publisher.Publication{Body: "x", DedupID: "evt-1"}); err != nil {
		t.Fatalf("expected duplicate response to count as success, got %v", err)
	}
}

func TestHTTPPublisher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := publisher.NewHTTPPublisher(srv.URL, time.Second)
	if _, err := p.Publish(context.Background(), publisher.Publication{Body: "x"}); err == nil {
		t.Fatal("expected error on 503")
	}
}
