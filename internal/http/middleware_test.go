package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/school-bell/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var sawLogger bool
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logging.FromContext(r.Context()) != nil
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/comando", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/ativar/", nil))

	if !sawLogger {
		t.Fatal("expected request scoped logger in context")
	}
	if got := first.Header().Get(RequestIDHeader); got != "1" {
		t.Fatalf("expected request id 1, got %q", got)
	}
	if got := second.Header().Get(RequestIDHeader); got != "2" {
		t.Fatalf("expected request id 2, got %q", got)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %d: %s", len(lines), buf.String())
	}

	var entries []map[string]any
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}

	if entries[0]["level"] != "DEBUG" || entries[0]["status"] != float64(http.StatusOK) || entries[0]["path"] != "/api/comando" {
		t.Fatalf("unexpected poll log entry %#v", entries[0])
	}
	if entries[1]["level"] != "INFO" || entries[1]["status"] != float64(http.StatusConflict) || entries[1]["method"] != http.MethodPost {
		t.Fatalf("unexpected activation log entry %#v", entries[1])
	}
}

func TestNewRouterAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := NewRouter(RouterConfig{Middleware: []func(http.Handler) http.Handler{mark("outer"), nil, mark("inner")}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/comando", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without handlers, got %d", rec.Code)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Fatalf("unexpected middleware order %v", order)
	}
}
