// Package delivery wraps outbound Telegram sends with bounded retries and
// provider-directed backoff.
package delivery

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy configures the retry budget and the fixed delay ladder used
// between attempts.
type Policy struct {
	// MaxAttempts bounds the total number of tries, the first one included.
	MaxAttempts int
	// Delays is the ladder consulted for attempt k at index min(k, len-1).
	Delays []time.Duration
	// Jitter adds uniform noise in [0, Jitter) on top of the ladder delay.
	// Explicit retry-after hints are never jittered.
	Jitter time.Duration
}

// DefaultPolicy mirrors the production budget: five attempts over a
// 1s/2s/2s/3s/5s ladder, no jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Delays: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			2 * time.Second,
			3 * time.Second,
			5 * time.Second,
		},
	}
}

// Backoff returns the delay to wait before retrying after failed attempt
// number attempt (0-based). ok is false once the budget is exhausted; the
// caller then surfaces the last error unchanged.
//
// When err carries an explicit server wait hint, the hint is authoritative:
// it overrides the ladder exactly and gets no jitter.
func (p Policy) Backoff(attempt int, err error) (time.Duration, bool) {
	if attempt+1 >= p.MaxAttempts {
		return 0, false
	}
	if hint, ok := RetryAfterHint(err); ok {
		return hint, true
	}
	if len(p.Delays) == 0 {
		return 0, true
	}
	idx := attempt
	if idx >= len(p.Delays) {
		idx = len(p.Delays) - 1
	}
	delay := p.Delays[idx]
	if p.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(p.Jitter)))
	}
	return delay, true
}

// Sleep blocks for d or until the context is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
