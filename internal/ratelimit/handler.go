package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// RetryStrategy defines the backoff intervals for render-service retries
type RetryStrategy struct {
	Intervals  []time.Duration // e.g., [100ms, 250ms, 500ms]
	MaxRetries int
}

// DefaultRetryStrategy keeps retries inside a single interaction frame budget
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			100 * time.Millisecond,
			250 * time.Millisecond,
			500 * time.Millisecond,
		},
		MaxRetries: 3,
	}
}

// NoRetry disables retries entirely
func NoRetry() *RetryStrategy {
	return &RetryStrategy{MaxRetries: 0}
}

// Interval returns the wait before retry number attempt (0-based), reusing the
// last interval once the list is exhausted.
func (s *RetryStrategy) Interval(attempt int) time.Duration {
	if len(s.Intervals) == 0 {
		return 0
	}
	if attempt < len(s.Intervals) {
		return s.Intervals[attempt]
	}
	return s.Intervals[len(s.Intervals)-1]
}

// RateLimitEvent represents a rate limit occurrence
type RateLimitEvent struct {
	Timestamp    time.Time `json:"timestamp" ts_type:"string"`
	Host         string    `json:"host"`         // render service host
	StatusCode   int       `json:"statusCode"`   // HTTP status code (429, 503, ...)
	RetryAttempt int       `json:"retryAttempt"` // Consecutive occurrences (0 = first)
	NextRetryAt  time.Time `json:"nextRetryAt" ts_type:"string"`
	Message      string    `json:"message"`
}

// Handler tracks rate limiting per render host and decides whether tile
// requests should be retried.
type Handler struct {
	mu          sync.RWMutex
	rateLimited map[string]*RateLimitEvent // host -> current rate limit state
	strategy    *RetryStrategy
	onRateLimit func(event RateLimitEvent)
	onRecovered func(host string)
	retry       bool
}

// NewHandler creates a new rate limit handler
func NewHandler(strategy *RetryStrategy) *Handler {
	if strategy == nil {
		strategy = DefaultRetryStrategy()
	}

	return &Handler{
		rateLimited: make(map[string]*RateLimitEvent),
		strategy:    strategy,
		retry:       true,
	}
}

// IsRateLimitStatus reports whether code signals server-side throttling
func IsRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests || // 429
		code == http.StatusServiceUnavailable || // 503, render queue full
		code == 509 // Bandwidth Limit Exceeded
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event RateLimitEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// SetOnRecovered sets the callback for recovery from rate limit
func (h *Handler) SetOnRecovered(callback func(host string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRecovered = callback
}

// SetAutoRetry enables or disables retries
func (h *Handler) SetAutoRetry(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retry = enabled
}

// IsRateLimited checks if a host is currently rate limited
func (h *Handler) IsRateLimited(host string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, limited := h.rateLimited[host]
	return limited
}

// CheckResponse analyzes an HTTP response for rate limit indicators
func (h *Handler) CheckResponse(host string, resp *http.Response) bool {
	if !IsRateLimitStatus(resp.StatusCode) {
		// Check if we were previously rate limited and have now recovered
		h.checkRecovery(host)
		return false
	}

	h.recordRateLimit(host, resp.StatusCode)
	return true
}

// NextRetry returns how long to wait before retry number attempt (0-based)
// and whether that retry is allowed at all.
func (h *Handler) NextRetry(attempt int) (time.Duration, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.retry || attempt >= h.strategy.MaxRetries {
		return 0, false
	}
	return h.strategy.Interval(attempt), true
}

// recordRateLimit records a rate limit event
func (h *Handler) recordRateLimit(host string, statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, exists := h.rateLimited[host]

	retryAttempt := 0
	if exists {
		retryAttempt = existing.RetryAttempt + 1
	}

	nextRetryAt := time.Now().Add(h.strategy.Interval(retryAttempt))

	event := RateLimitEvent{
		Timestamp:    time.Now(),
		Host:         host,
		StatusCode:   statusCode,
		RetryAttempt: retryAttempt,
		NextRetryAt:  nextRetryAt,
		Message:      buildMessage(host, statusCode, retryAttempt),
	}

	h.rateLimited[host] = &event

	log.Printf("[RateLimit] %s rate limited with HTTP %d (occurrence %d)", host, statusCode, retryAttempt)

	// Notify UI
	if h.onRateLimit != nil {
		go h.onRateLimit(event)
	}
}

// checkRecovery checks if we've recovered from a rate limit
func (h *Handler) checkRecovery(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[host]; exists {
		delete(h.rateLimited, host)
		log.Printf("[RateLimit] %s rate limit cleared", host)

		if h.onRecovered != nil {
			go h.onRecovered(host)
		}
	}
}

// ManualRetry clears the recorded state for host
func (h *Handler) ManualRetry(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rateLimited[host]; !exists {
		return
	}
	log.Printf("[RateLimit] Manual retry requested for %s", host)
	delete(h.rateLimited, host)
}

// GetCurrentState returns the current rate limit state for a host
func (h *Handler) GetCurrentState(host string) *RateLimitEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.rateLimited[host]; exists {
		// Return a copy
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

// buildMessage creates a user-friendly message
func buildMessage(host string, statusCode int, retryAttempt int) string {
	if retryAttempt == 0 {
		return fmt.Sprintf("Render service %s is busy (HTTP %d). Frames may arrive with missing tiles.", host, statusCode)
	}
	return fmt.Sprintf("Render service %s still busy (HTTP %d, %d consecutive responses).", host, statusCode, retryAttempt+1)
}
