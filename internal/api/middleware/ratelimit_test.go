package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            rate.Limit(1),
		Burst:           3,
		CleanupInterval: time.Hour,
		MaxAge:          time.Hour,
	})
	defer rl.Stop()

	// A call setup fires several webhooks back to back; all of the burst
	// must pass, the request after it must not.
	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.7") {
			t.Fatalf("request %d rejected inside burst", i+1)
		}
	}
	if rl.Allow("203.0.113.7") {
		t.Fatal("request beyond burst allowed")
	}

	// An exhausted caller never affects another caller's allowance.
	if !rl.Allow("203.0.113.8") {
		t.Fatal("request from a fresh caller rejected")
	}
}

func TestRateLimiterEvictsIdleCallers(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            rate.Limit(10),
		Burst:           10,
		CleanupInterval: time.Hour,
		MaxAge:          0, // idle immediately
	})
	defer rl.Stop()

	rl.Allow("198.51.100.1")
	rl.Allow("198.51.100.2")

	rl.mu.Lock()
	tracked := len(rl.callers)
	rl.mu.Unlock()
	if tracked != 2 {
		t.Fatalf("tracked callers = %d, want 2", tracked)
	}

	rl.evictIdle()

	rl.mu.Lock()
	tracked = len(rl.callers)
	rl.mu.Unlock()
	if tracked != 0 {
		t.Fatalf("tracked callers after eviction = %d, want 0", tracked)
	}
}

func TestRateLimitMiddlewareRejectsWithRetryAfter(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{
		Rate:            rate.Limit(1),
		Burst:           1,
		CleanupInterval: time.Hour,
		MaxAge:          time.Hour,
	})
	defer rl.Stop()

	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<Response/>")) //nolint:errcheck
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice-inbound", nil)
	req.RemoteAddr = "203.0.113.9:40312"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q, want \"1\"", rec.Header().Get("Retry-After"))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}
}

func TestWebhookConfigOutpacesAPIConfig(t *testing.T) {
	api, wh := DefaultRateLimitConfig(), WebhookRateLimitConfig()

	if wh.Rate <= api.Rate || wh.Burst <= api.Burst {
		t.Fatalf("webhook limits (%v/%d) must exceed api limits (%v/%d)",
			wh.Rate, wh.Burst, api.Rate, api.Burst)
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"ipv4 with port", "203.0.113.1:5060", "203.0.113.1"},
		{"ipv6 with port", "[2001:db8::1]:443", "2001:db8::1"},
		{"bare address", "203.0.113.2", "203.0.113.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if got := extractIP(r); got != tt.want {
				t.Errorf("extractIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
			}
		})
	}
}
