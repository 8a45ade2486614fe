package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/foodshare-donations/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMemStore() *memStore { return &memStore{values: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.values[key], nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		m.values[key] = value
	}
	return nil
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"n":1}`))
	})
}

func postWithKey(actor, path, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(context.WithValue(req.Context(), logger.ActorIDKey, actor))
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := newMemStore()
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, postWithKey("donor-a", "/v1/donations", "abc"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, postWithKey("donor-a", "/v1/donations", "abc"))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, `{"n":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ScopedPerActorAndPath(t *testing.T) {
	store := newMemStore()
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(&calls, http.StatusOK))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("orph-b", "/v1/donations/1/reserve", "k"))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("orph-c", "/v1/donations/1/reserve", "k"))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("orph-b", "/v1/donations/2/reserve", "k"))
	assert.Equal(t, 3, calls)
}

func TestIdempotency_SkipsFailuresAndUnkeyed(t *testing.T) {
	store := newMemStore()
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(&calls, http.StatusConflict))

	h.ServeHTTP(httptest.NewRecorder(), postWithKey("a", "/x", "k"))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("a", "/x", "k"))
	h.ServeHTTP(httptest.NewRecorder(), postWithKey("a", "/x", ""))
	assert.Equal(t, 3, calls)
	assert.Empty(t, store.values)
}

func TestIdempotency_FailsOpen(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("redis down")
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(&calls, http.StatusOK))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postWithKey("a", "/x", "k"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	calls := 0
	h := rl.Middleware(countingHandler(&calls, http.StatusOK))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodPost, "/", nil)
	other.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)

	rl.now = func() time.Time { return fixed.Add(time.Second) }
	again := httptest.NewRequest(http.MethodPost, "/", nil)
	again.RemoteAddr = "10.0.0.1:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, again)
	assert.Equal(t, http.StatusOK, rec.Code, "token refills after a second")
}

func TestHealth(t *testing.T) {
	h := Health(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequestID(t *testing.T) {
	var seen interface{}
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context().Value(logger.RequestIDKey)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
