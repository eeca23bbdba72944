package collectors

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces requests to one venue. Besides the steady request rate it
// has a cooldown gate: after a rate-limit response every caller waits until
// the cooldown expires.
type Throttle struct {
	limiter  *rate.Limiter
	cooldown time.Duration

	mu    sync.Mutex
	until time.Time
}

// NewThrottle builds a throttle allowing rps requests per second. rps <= 0
// disables pacing; the cooldown gate still applies.
func NewThrottle(rps float64, burst int, cooldown time.Duration) *Throttle {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		limiter:  rate.NewLimiter(limit, burst),
		cooldown: cooldown,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if d := t.remaining(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return t.limiter.Wait(ctx)
}

// Trip starts a cooldown. A cooldown already running is only ever extended.
func (t *Throttle) Trip() {
	if t == nil || t.cooldown <= 0 {
		return
	}
	until := time.Now().Add(t.cooldown)
	t.mu.Lock()
	if until.After(t.until) {
		t.until = until
	}
	t.mu.Unlock()
}

// CoolingDown reports whether requests are currently suspended.
func (t *Throttle) CoolingDown() bool {
	return t.remaining() > 0
}

func (t *Throttle) remaining() time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Until(t.until)
}
