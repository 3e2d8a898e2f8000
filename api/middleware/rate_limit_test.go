package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/settlement-engine/pkg/config"
)

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{CheckoutPerSecond: 1, CheckoutBurst: 2})
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := RateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/quote", nil)
		req = req.WithContext(WithIdentity(req.Context(), user, "buyer"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	for i := 0; i < 2; i++ {
		if resp := send("buyer-a"); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
	}
	resp := send("buyer-a")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if other := send("buyer-b"); other.Code != http.StatusOK {
		t.Fatalf("other buyer should have its own bucket, got %d", other.Code)
	}

	now = now.Add(time.Second)
	if resp := send("buyer-a"); resp.Code != http.StatusOK {
		t.Fatalf("expected refill after one second, got %d", resp.Code)
	}
}

func TestRateLimitDropsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{CheckoutPerSecond: 1, CheckoutBurst: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.allow("ip:10.0.0.1")
	now = now.Add(2 * time.Minute)
	limiter.allow("ip:10.0.0.2")

	if _, ok := limiter.visitors["ip:10.0.0.1"]; ok {
		t.Fatalf("expected idle visitor to be dropped")
	}
	if len(limiter.visitors) != 1 {
		t.Fatalf("expected one visitor got %d", len(limiter.visitors))
	}
}

func TestRateLimitDisabledWithoutRate(t *testing.T) {
	handler := RateLimit(NewRateLimiter(config.RateLimitConfig{}), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", resp.Code)
		}
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := clientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected remote host got %s", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.5 , 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("expected forwarded ip got %s", got)
	}
}

type countingWindow struct {
	counts map[string]int64
	err    error
}

func (c *countingWindow) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	c.counts[scope]++
	return c.counts[scope] <= limit, c.counts[scope], nil
}

func TestWindowLimitCapsPerUser(t *testing.T) {
	counter := &countingWindow{counts: map[string]int64{}}
	handler := WindowLimit(counter, "payments-verify", 2, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/verify", nil)
		req = req.WithContext(WithIdentity(req.Context(), "buyer-a", "buyer"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
		if resp.Code == http.StatusTooManyRequests && resp.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected Retry-After 60 got %q", resp.Header().Get("Retry-After"))
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if _, ok := counter.counts["payments-verify:buyer-a"]; !ok {
		t.Fatalf("expected counter scoped by user, got %v", counter.counts)
	}
}

func TestWindowLimitFailsOpen(t *testing.T) {
	counter := &countingWindow{err: errors.New("redis down")}
	handler := WindowLimit(counter, "payments-verify", 1, time.Minute, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
