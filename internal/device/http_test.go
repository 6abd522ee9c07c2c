package device

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPRinger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		baseURL  string
		endpoint string
		wantErr  bool
	}{
		{name: "plain host", baseURL: "http://192.168.0.50", endpoint: "http://192.168.0.50/ring"},
		{name: "trailing slash", baseURL: "https://siren.local/api/", endpoint: "https://siren.local/api/ring"},
		{name: "unsupported scheme", baseURL: "ftp://siren.local", wantErr: true},
		{name: "missing host", baseURL: "http://", wantErr: true},
		{name: "garbage", baseURL: "://", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ringer, err := NewHTTPRinger(tt.baseURL, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.baseURL)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewHTTPRinger failed: %v", err)
			}
			if ringer.Endpoint() != tt.endpoint {
				t.Fatalf("endpoint = %q, want %q", ringer.Endpoint(), tt.endpoint)
			}
		})
	}
}

func TestHTTPRinger_Ring(t *testing.T) {
	t.Parallel()

	t.Run("posts duration and source", func(t *testing.T) {
		t.Parallel()

		var got ringRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != RingPath {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("unexpected content type %q", ct)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode body: %v", err)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		ringer, err := NewHTTPRinger(server.URL, server.Client())
		if err != nil {
			t.Fatalf("NewHTTPRinger failed: %v", err)
		}
		if err := ringer.Ring(context.Background(), 5*time.Second, "web"); err != nil {
			t.Fatalf("Ring failed: %v", err)
		}
		if got.Duration != 5 || got.Source != "web" {
			t.Fatalf("unexpected request body %#v", got)
		}
	})

	t.Run("reports non-success statuses", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		ringer, _ := NewHTTPRinger(server.URL, server.Client())
		err := ringer.Ring(context.Background(), time.Second, "manual")
		if err == nil || !strings.Contains(err.Error(), "503") {
			t.Fatalf("expected 503 error, got %v", err)
		}
	})

	t.Run("honours the context deadline", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		ringer, _ := NewHTTPRinger(server.URL, server.Client())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := ringer.Ring(ctx, time.Second, "manual")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("ring was not bounded by the deadline, took %v", elapsed)
		}
	})

	t.Run("reports refused connections", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		baseURL := server.URL
		server.Close()

		ringer, _ := NewHTTPRinger(baseURL, nil)
		if err := ringer.Ring(context.Background(), time.Second, "manual"); err == nil {
			t.Fatal("expected connection error")
		}
	})

	t.Run("rejects non-positive durations", func(t *testing.T) {
		t.Parallel()

		ringer, _ := NewHTTPRinger("http://127.0.0.1:1", nil)
		if err := ringer.Ring(context.Background(), 0, "manual"); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("expected ErrInvalidDuration, got %v", err)
		}
	})
}
