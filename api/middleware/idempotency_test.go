package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"create payment", http.MethodPost, "/api/v1/payments", defaultIdempotencyTTL, true},
		{"generate khqr", http.MethodPost, "/api/v1/payments/{paymentID}/khqr", criticalIdempotencyTTL, true},
		{"status read", http.MethodGet, "/api/v1/payments/{paymentID}/status", 0, false},
		{"gateway check", http.MethodPost, "/api/v1/payway/transactions/{tranID}/check", 0, false},
		{"wrong method", http.MethodGet, "/api/v1/payments", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/payments", "/api/v1/payments", strings.NewReader(`{"amount":"10.00"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"payment_code":"PAY202501-0001"}}`))
	})

	body := `{"amount":"10.00","due_date":"2025-02-01T00:00:00Z"}`
	req := requestWithPattern(http.MethodPost, "/api/v1/payments", "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	req2 := requestWithPattern(http.MethodPost, "/api/v1/payments", "/api/v1/payments", strings.NewReader(body))
	req2.Header.Set("Idempotency-Key", "abc")
	resp2 := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp2, req2)

	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	if resp2.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", resp2.Code)
	}
	if resp2.Body.String() != resp.Body.String() {
		t.Fatalf("replayed body mismatch: %s vs %s", resp2.Body.String(), resp.Body.String())
	}
	if resp2.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("replayed content type missing")
	}
}

func TestIdempotencyMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/payments", "/api/v1/payments", strings.NewReader(`{"amount":"10.00"}`))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	req2 := requestWithPattern(http.MethodPost, "/api/v1/payments", "/api/v1/payments", strings.NewReader(`{"amount":"99.00"}`))
	req2.Header.Set("Idempotency-Key", "abc")
	resp2 := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp2, req2)

	if resp2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for body mismatch got %d", resp2.Code)
	}
}

func TestIdempotencyMiddlewareSkipsUnmatchedRoutes(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	// No Idempotency-Key header; unmatched routes pass straight through.
	req := requestWithPattern(http.MethodGet, "/api/v1/payments/123/status", "/api/v1/payments/{paymentID}/status", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if calls != 1 {
		t.Fatalf("handler should run for unmatched routes")
	}
	if len(store.data) != 0 {
		t.Fatalf("nothing should be stored for unmatched routes")
	}
}

func TestIdempotencyMiddlewareKHQRReplay(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"success":true,"qr_string":"000201"}}`))
	})

	pattern := "/api/v1/payments/{paymentID}/khqr"
	url := "/api/v1/payments/7f4a/khqr"
	req := requestWithPattern(http.MethodPost, url, pattern, nil)
	req.Header.Set("Idempotency-Key", "qr-1")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	req2 := requestWithPattern(http.MethodPost, url, pattern, nil)
	req2.Header.Set("Idempotency-Key", "qr-1")
	resp2 := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp2, req2)

	if calls != 1 {
		t.Fatalf("expected single QR generation, got %d", calls)
	}
	if resp2.Body.String() != resp.Body.String() {
		t.Fatalf("replay must return the original QR payload")
	}
}
