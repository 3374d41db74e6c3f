package main

import (
	"sunrise-desktop/internal/ratelimit"
)

// Rate Limit Management Functions (Wails-exported)

// ManualRetryRateLimit clears the rate-limit state of the render server and
// re-renders
func (a *App) ManualRetryRateLimit() {
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.ManualRetry(a.client.Host())
	}
	a.renderer.Settle()
}

// GetRateLimitStatus returns the current rate limit state of the render server
func (a *App) GetRateLimitStatus() *ratelimit.RateLimitEvent {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.GetCurrentState(a.client.Host())
	}
	return nil
}

// IsRateLimited checks if the render server is currently rate limited
func (a *App) IsRateLimited() bool {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.IsRateLimited(a.client.Host())
	}
	return false
}

// SetAutoRetryRateLimit enables or disables automatic tile retries
func (a *App) SetAutoRetryRateLimit(enabled bool) {
	if a.rateLimitHandler != nil {
		a.rateLimitHandler.SetAutoRetry(enabled)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.settings != nil {
		a.settings.AutoRetry = enabled
		// Note: Settings will be saved when app closes via shutdown() hook
	}
}
