package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGateway(cfg SecConfig) http.Handler {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Role", r.Header.Get("X-Role-Name"))
		w.WriteHeader(http.StatusOK)
	})
	return AuthenticateRequestMiddleware(cfg)(inner)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, nil, []string{"bk"}, nil, 100, 100))
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBackendKeyResolvesRole(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, nil, []string{"bk"}, nil, 100, 100))
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
	req.Header.Set("Authorization", "Bearer bk")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Seen-Role") != "backend" {
		t.Fatalf("role not propagated: %q", rec.Header().Get("X-Seen-Role"))
	}
}

func TestXAPIKeyHeaderAccepted(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, []string{"fk"}, nil, nil, 100, 100))
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
	req.Header.Set("X-API-Key", "fk")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Seen-Role") != "frontend" {
		t.Fatalf("role: %q", rec.Header().Get("X-Seen-Role"))
	}
}

func TestHealthProbesBypassAuth(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, nil, []string{"bk"}, nil, 100, 100))
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAskPathBypassesGatewayAuth(t *testing.T) {
	// /v1/ask authenticates in its handler with a separate credential
	h := newGateway(NewSecConfig(nil, nil, nil, []string{"bk"}, nil, 100, 100))
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected gateway passthrough, got %d", rec.Code)
	}
}

func TestFrontendScopeEnforced(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, []string{"fk"}, nil, nil, 100, 100))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-API-Key", "fk")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for frontend outside scope, got %d", rec.Code)
	}
}

func TestIPWhitelistBlocks(t *testing.T) {
	h := newGateway(NewSecConfig(nil, []string{"10.1.1.1"}, nil, []string{"bk"}, nil, 100, 100))
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
	req.Header.Set("Authorization", "Bearer bk")
	req.RemoteAddr = "192.168.0.9:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRateLimitKicksIn(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, nil, []string{"bk"}, nil, 1, 1))
	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
		req.Header.Set("Authorization", "Bearer bk")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last)
	}
}

func TestRateLimitIsPerKey(t *testing.T) {
	h := newGateway(NewSecConfig(nil, nil, nil, []string{"bk1", "bk2"}, nil, 1, 1))
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
		req.Header.Set("Authorization", "Bearer bk1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/threads/t1/messages", nil)
	req.Header.Set("Authorization", "Bearer bk2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh key rate limited: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newGateway(NewSecConfig([]string{"https://app.example.com"}, nil, nil, []string{"bk"}, nil, 100, 100))
	req := httptest.NewRequest(http.MethodOptions, "/v1/threads/t1/messages", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("missing CORS header")
	}
}
