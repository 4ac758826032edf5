package control

import (
	"math"
	"time"
)

// AccelerationLimiter moves a velocity toward a commanded target no faster than MaxAcc per second.
// A zero MaxAcc disables limiting.
type AccelerationLimiter struct {
	MaxAcc float64
	last   float64
}

// Next returns the velocity to apply for the next dt given the commanded target.
func (l *AccelerationLimiter) Next(target float64, dt time.Duration) float64 {
	if l.MaxAcc <= 0 {
		l.last = target
		return target
	}
	step := l.MaxAcc * dt.Seconds()
	velUp := l.last + step
	velDown := l.last - step
	l.last = math.Max(velDown, math.Min(velUp, target))
	return l.last
}

// Current is the last returned velocity.
func (l *AccelerationLimiter) Current() float64 {
	return l.last
}

// Reset sets the current velocity without limiting.
func (l *AccelerationLimiter) Reset(v float64) {
	l.last = v
}
