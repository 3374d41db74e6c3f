package render

import (
	"context"
	"errors"
	"log"
	"math"
	"time"
)

// ErrSunriseRunning is returned when an animation is already playing.
var ErrSunriseRunning = errors.New("sunrise animation already running")

// PlaySunrise advances the simulated hour through a full day, rendering a
// draft frame per step, then restores the starting hour and renders a final
// frame. It blocks until the day completes, StopSunrise is called, or ctx is
// cancelled; the stop flag is checked before every step.
func (r *Renderer) PlaySunrise(ctx context.Context) error {
	if !r.sunrise.TryLock() {
		return ErrSunriseRunning
	}
	defer r.sunrise.Unlock()

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	original := r.store.Hour()
	r.store.SetSunrisePlaying(true)
	defer func() {
		r.store.SetSunrisePlaying(false)
		r.store.SetHour(original)
		r.RenderFrame(QualityHigh)
	}()

	steps := int(math.Round(24 / r.cfg.SunriseStep))
	interval := r.cfg.SunriseInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i := 1; i <= steps; i++ {
		if !r.store.SunrisePlaying() {
			log.Printf("[Render] sunrise stopped at step %d/%d", i-1, steps)
			return nil
		}
		r.store.SetHour(original + float64(i)*r.cfg.SunriseStep)
		r.RenderFrame(QualityLow)

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.ctx.Done():
			return ErrClosed
		case <-timer.C:
		}
	}
	return nil
}

// StopSunrise asks a running animation to stop before its next step.
func (r *Renderer) StopSunrise() {
	r.store.SetSunrisePlaying(false)
}
