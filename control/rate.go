// Package control paces periodic loops and shapes the commands they send.
package control

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// MaxFrequency is the fastest rate a loop may be configured for.
const MaxFrequency = 200.0

// Rate paces a loop at a fixed frequency. Each Sleep waits until one period after the previous
// wake up, so time spent working counts against the period.
type Rate struct {
	clk    clock.Clock
	period time.Duration
	last   time.Time
}

// NewRate returns a Rate ticking hz times per second on clk.
func NewRate(clk clock.Clock, hz float64) (*Rate, error) {
	if !(hz > 0) || hz > MaxFrequency {
		return nil, errors.Errorf("loop frequency shouldn't be 0 or above %vHz, got %v", MaxFrequency, hz)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Rate{
		clk:    clk,
		period: time.Duration(float64(time.Second) / hz),
		last:   clk.Now(),
	}, nil
}

// Period is the target time between wake ups.
func (r *Rate) Period() time.Duration {
	return r.period
}

// Reset starts the current period now.
func (r *Rate) Reset() {
	r.last = r.clk.Now()
}

// Sleep blocks until the end of the current period. If the period has already elapsed it returns
// immediately; a loop more than a whole period behind restarts its cadence from now. It returns
// false if ctx was done first.
func (r *Rate) Sleep(ctx context.Context) bool {
	next := r.last.Add(r.period)
	now := r.clk.Now()
	if !now.Before(next) {
		if now.Sub(next) > r.period {
			r.last = now
		} else {
			r.last = next
		}
		return ctx.Err() == nil
	}

	timer := r.clk.Timer(next.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		r.last = next
		return true
	}
}
