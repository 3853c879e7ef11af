package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("accepts the configured key", func(t *testing.T) {
		handler := InternalAuthMiddleware("secret-key")(next)
		req := httptest.NewRequest("POST", "/internal/batches/x/receipts", nil)
		req.Header.Set("X-Internal-API-Key", "secret-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("rejects a wrong key", func(t *testing.T) {
		handler := InternalAuthMiddleware("secret-key")(next)
		req := httptest.NewRequest("POST", "/internal/batches/x/receipts", nil)
		req.Header.Set("X-Internal-API-Key", "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects a missing key", func(t *testing.T) {
		handler := InternalAuthMiddleware("secret-key")(next)
		req := httptest.NewRequest("POST", "/internal/batches/x/receipts", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("refuses to serve when unconfigured", func(t *testing.T) {
		handler := InternalAuthMiddleware("")(next)
		req := httptest.NewRequest("POST", "/internal/batches/x/receipts", nil)
		req.Header.Set("X-Internal-API-Key", "")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}
