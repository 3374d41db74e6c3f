package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestNextRetryIsBounded(t *testing.T) {
	h := NewHandler(nil)
	want := []time.Duration{100 * time.Millisecond, 250 * time.Millisecond, 500 * time.Millisecond}
	for attempt, w := range want {
		wait, ok := h.NextRetry(attempt)
		if !ok || wait != w {
			t.Fatalf("NextRetry(%d) = %v %v, want %v true", attempt, wait, ok, w)
		}
	}
	if _, ok := h.NextRetry(3); ok {
		t.Fatal("NextRetry beyond MaxRetries should refuse")
	}

	h.SetAutoRetry(false)
	if _, ok := h.NextRetry(0); ok {
		t.Fatal("NextRetry with retries disabled should refuse")
	}
}

func TestIntervalReusesLast(t *testing.T) {
	s := &RetryStrategy{Intervals: []time.Duration{time.Second, 2 * time.Second}, MaxRetries: 5}
	if got := s.Interval(4); got != 2*time.Second {
		t.Fatalf("Interval(4) = %v, want 2s", got)
	}
	if got := NoRetry().Interval(0); got != 0 {
		t.Fatalf("NoRetry interval = %v", got)
	}
}

func TestCheckResponseTracksAndRecovers(t *testing.T) {
	h := NewHandler(nil)
	limited := make(chan RateLimitEvent, 2)
	recovered := make(chan string, 1)
	h.SetOnRateLimit(func(e RateLimitEvent) { limited <- e })
	h.SetOnRecovered(func(host string) { recovered <- host })

	if !h.CheckResponse("render:8080", &http.Response{StatusCode: http.StatusTooManyRequests}) {
		t.Fatal("429 should be reported as rate limited")
	}
	if !h.CheckResponse("render:8080", &http.Response{StatusCode: http.StatusServiceUnavailable}) {
		t.Fatal("503 should be reported as rate limited")
	}
	if !h.IsRateLimited("render:8080") {
		t.Fatal("host should be rate limited")
	}
	state := h.GetCurrentState("render:8080")
	if state == nil || state.RetryAttempt != 1 || state.StatusCode != 503 {
		t.Fatalf("state = %+v", state)
	}

	select {
	case e := <-limited:
		if e.Host != "render:8080" {
			t.Fatalf("event host = %q", e.Host)
		}
	case <-time.After(time.Second):
		t.Fatal("rate limit callback not invoked")
	}

	if h.CheckResponse("render:8080", &http.Response{StatusCode: http.StatusOK}) {
		t.Fatal("200 should not be rate limited")
	}
	select {
	case host := <-recovered:
		if host != "render:8080" {
			t.Fatalf("recovered host = %q", host)
		}
	case <-time.After(time.Second):
		t.Fatal("recovery callback not invoked")
	}
	if h.IsRateLimited("render:8080") || h.GetCurrentState("render:8080") != nil {
		t.Fatal("host should have recovered")
	}
}

func TestManualRetryClearsState(t *testing.T) {
	h := NewHandler(nil)
	h.CheckResponse("a", &http.Response{StatusCode: 509})
	h.ManualRetry("a")
	if h.IsRateLimited("a") {
		t.Fatal("ManualRetry should clear the rate limit")
	}
	h.ManualRetry("unknown")
}

func TestNotFoundIsNotRateLimit(t *testing.T) {
	if IsRateLimitStatus(http.StatusNotFound) || IsRateLimitStatus(http.StatusInternalServerError) {
		t.Fatal("only throttling statuses should count as rate limits")
	}
}
