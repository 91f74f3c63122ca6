package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func hit(t *testing.T, l *RateLimiter, ip string) int {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	r.RemoteAddr = ip + ":54321"

	w := httptest.NewRecorder()
	l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, r)

	return w.Result().StatusCode
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	l := NewRateLimiter("api", 3, time.Minute, nil, zap.NewNop())

	for i := 0; i < 3; i++ {
		if got := hit(t, l, "10.0.0.1"); got != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, got)
		}
	}
	if got := hit(t, l, "10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", got)
	}
}

func TestRateLimiter_PerClientIsolation(t *testing.T) {
	l := NewRateLimiter("api", 1, time.Minute, nil, zap.NewNop())

	if got := hit(t, l, "10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", got)
	}
	if got := hit(t, l, "10.0.0.2"); got != http.StatusOK {
		t.Fatalf("second client status = %d, want 200", got)
	}
	if got := hit(t, l, "10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("first client second hit = %d, want 429", got)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	now := time.Now()
	l := NewRateLimiter("api", 1, time.Minute, nil, zap.NewNop())
	l.now = func() time.Time { return now }

	if got := hit(t, l, "10.0.0.1"); got != http.StatusOK {
		t.Fatalf("first hit = %d, want 200", got)
	}
	if got := hit(t, l, "10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("second hit = %d, want 429", got)
	}

	now = now.Add(61 * time.Second)
	if got := hit(t, l, "10.0.0.1"); got != http.StatusOK {
		t.Fatalf("post-window hit = %d, want 200", got)
	}
}

func TestRateLimiter_ForwardedForWins(t *testing.T) {
	_ = NewRateLimiter("api", 1, time.Minute, nil, zap.NewNop())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	r.RemoteAddr = "10.0.0.9:1000"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.9")

	if got := clientIP(r); got != "203.0.113.7" {
		t.Fatalf("clientIP = %q, want first forwarded hop", got)
	}
}

func TestRateLimiter_RetryAfterHeader(t *testing.T) {
	l := NewRateLimiter("chat", 1, time.Minute, nil, zap.NewNop())

	hit(t, l, "10.0.0.1")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	r.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(w, r)

	if got := w.Result().Header.Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
}
