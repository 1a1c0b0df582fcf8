package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garnizeh/skilltrials/api"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestSystemHandlers(t *testing.T) {
	h := api.NewSystemHandler(pingFunc(func(context.Context) error { return nil }))

	// HealthHandler
	w := httptest.NewRecorder()
	h.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200 got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("health: expected json content-type, got %q", ct)
	}
	if b := w.Body.String(); !strings.Contains(b, `"status":"ok"`) || !strings.Contains(b, `"success":true`) {
		t.Fatalf("health: unexpected body %s", b)
	}

	// VersionHandler
	w = httptest.NewRecorder()
	h.VersionHandler("1.2.3", "2025-08-24T00:00:00Z")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("version: expected 200 got %d", w.Code)
	}
	if b := w.Body.String(); !strings.Contains(b, `"version":"1.2.3"`) || !strings.Contains(b, `"buildTime":"2025-08-24T00:00:00Z"`) {
		t.Fatalf("version: unexpected body %s", b)
	}
}

func TestHealthDegraded(t *testing.T) {
	h := api.NewSystemHandler(pingFunc(func(context.Context) error { return errors.New("closed") }))

	w := httptest.NewRecorder()
	h.HealthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestHealthThroughRouter(t *testing.T) {
	s := newTestServer(t, nil)
	expect(t, s.do(http.MethodGet, "/health", nil, ""), http.StatusOK, nil)
	expect(t, s.do(http.MethodGet, "/version", nil, ""), http.StatusOK, nil)
}
