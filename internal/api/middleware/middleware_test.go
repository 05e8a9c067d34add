package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notifyhub/deadman-switch/internal/api/middleware"
)

func TestCorrelationID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"echoes caller id", "abc-123", true},
		{"generates when missing", "", false},
		{"replaces oversized id", strings.Repeat("x", 200), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = middleware.GetCorrelationID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(middleware.CorrelationHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			echoed := rec.Header().Get(middleware.CorrelationHeader)
			if echoed == "" || echoed != seen {
				t.Fatalf("context id %q does not match echoed %q", seen, echoed)
			}
			if tc.keep && echoed != tc.incoming {
				t.Errorf("expected %q to be kept, got %q", tc.incoming, echoed)
			}
			if !tc.keep && echoed == tc.incoming {
				t.Errorf("expected a generated id")
			}
		})
	}
}

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   zapcore.Level
	}{
		{"/api/v1/publish", http.StatusCreated, zapcore.InfoLevel},
		{"/api/v1/publish", http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{"/api/v1/stats", http.StatusInternalServerError, zapcore.ErrorLevel},
		{"/metrics", http.StatusOK, zapcore.DebugLevel},
	}
	for _, tc := range tests {
		core, logs := observer.New(zapcore.DebugLevel)
		h := middleware.RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("ok"))
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))

		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("%s: expected 1 log entry, got %d", tc.path, len(entries))
		}
		if entries[0].Level != tc.want {
			t.Errorf("%s %d: level = %v, want %v", tc.path, tc.status, entries[0].Level, tc.want)
		}
		if got := entries[0].ContextMap()["bytes"]; got != int64(2) {
			t.Errorf("bytes = %v, want 2", got)
		}
	}
}
