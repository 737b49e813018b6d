package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/msomdec/shopfront/internal/handler"
)

type stubDB struct{ err error }

func (s stubDB) Migrate(context.Context) error { return nil }
func (s stubDB) Ping(context.Context) error    { return s.err }
func (s stubDB) Close() error                  { return nil }

func TestHandleHealthz(t *testing.T) {
	tests := []struct {
		name   string
		db     stubDB
		status int
		body   string
	}{
		{"ok", stubDB{}, http.StatusOK, "ok"},
		{"db down", stubDB{err: errors.New("down")}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.NewHealthHandler(tt.db).HandleHealthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected Content-Type application/json, got %s", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["status"] != tt.body {
				t.Fatalf("expected status=%s, got %s", tt.body, body["status"])
			}
		})
	}
}

func TestHandleHealthzRouting(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Fatal("expected security headers on every response")
	}
}
