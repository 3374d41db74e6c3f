// Package throttle rate-limits or delays callback invocation for high-frequency
// pointer input.
package throttle

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"golang.org/x/time/rate"
)

// Throttle runs its callback at most once per interval. Calls made before the
// interval has elapsed since the last executed call are dropped.
type Throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	fn       func()
	disposed bool
	now      func() time.Time
}

// NewThrottle binds fn to a new throttle. A non-positive interval never drops.
func NewThrottle(interval time.Duration, fn func()) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{
		// A single token: a dropped call never consumes, so the window is
		// measured from the last executed call.
		limiter: rate.NewLimiter(limit, 1),
		fn:      fn,
		now:     time.Now,
	}
}

// Call runs the callback if the interval has elapsed and reports whether it ran.
func (t *Throttle) Call() bool {
	t.mu.Lock()
	if t.disposed || !t.limiter.AllowN(t.now(), 1) {
		t.mu.Unlock()
		return false
	}
	fn := t.fn
	t.mu.Unlock()

	fn()
	return true
}

// Dispose stops the throttle; later calls are ignored.
func (t *Throttle) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disposed = true
}

// Debounce runs its callback once after delay has passed without another call.
type Debounce struct {
	mu        sync.Mutex
	fn        func()
	debounced func(func())
	disposed  bool
}

// NewDebounce binds fn to a new debouncer
func NewDebounce(delay time.Duration, fn func()) *Debounce {
	return &Debounce{
		fn:        fn,
		debounced: debounce.New(delay),
	}
}

// Call (re)schedules the callback.
func (d *Debounce) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	d.debounced(d.fire)
}

func (d *Debounce) fire() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.mu.Unlock()

	fn()
}

// Dispose turns any pending invocation into a no-op and ignores later calls.
// bep/debounce has no stop hook, so the pending timer still fires once into
// the disposed check.
func (d *Debounce) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disposed = true
}
