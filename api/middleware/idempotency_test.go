package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryIdempotencyStore struct {
	values map[string]string
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{values: map[string]string{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func reservationRequest(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestIdempotencyRequiresKeyOnGuardedRoutes(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an Idempotency-Key")
	})

	resp := httptest.NewRecorder()
	Idempotency(newMemoryIdempotencyStore(), testLogger())(next).ServeHTTP(resp, reservationRequest(`{}`, ""))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	handlerRan := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
	resp := httptest.NewRecorder()
	Idempotency(newMemoryIdempotencyStore(), testLogger())(next).ServeHTTP(resp, req)

	if !handlerRan {
		t.Fatal("GET routes must pass through without a key")
	}
}

func TestIdempotencyReplayReturnsStoredResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"res-1"}}`))
	})

	handler := Idempotency(store, testLogger())(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, reservationRequest(`{"quantity":2}`, "key-1"))
	if first.Code != http.StatusCreated {
		t.Fatalf("first request: expected 201 got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, reservationRequest(`{"quantity":2}`, "key-1"))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body %q differs from original %q", second.Body.String(), first.Body.String())
	}
	if ct := second.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("replay content type %q", ct)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newMemoryIdempotencyStore()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	handler := Idempotency(store, testLogger())(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, reservationRequest(`{"quantity":2}`, "key-1"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, reservationRequest(`{"quantity":5}`, "key-1"))

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", second.Code, second.Body.String())
	}
	if !strings.Contains(second.Body.String(), "IDEMPOTENCY_KEY_REUSED") {
		t.Fatalf("expected IDEMPOTENCY_KEY_REUSED code, got %s", second.Body.String())
	}
}

func TestIdempotencyScopedPerUser(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	handler := Idempotency(store, testLogger())(next)

	first := reservationRequest(`{"quantity":2}`, "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	other := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{"quantity":2}`))
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	other.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), other)

	if calls != 2 {
		t.Fatalf("expected both users to reach the handler, got %d calls", calls)
	}
}
