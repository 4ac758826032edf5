package trajectory

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/xdwa/spatialmath"
)

// Limits bound the dynamic window. Velocities are in m/s and rad/s, accelerations in m/s^2 and
// rad/s^2. Samples* is the number of grid values per axis.
type Limits struct {
	MinVelX     float64 `json:"min_vel_x"`
	MaxVelX     float64 `json:"max_vel_x"`
	MinVelY     float64 `json:"min_vel_y"`
	MaxVelY     float64 `json:"max_vel_y"`
	MinVelTheta float64 `json:"min_vel_theta"`
	MaxVelTheta float64 `json:"max_vel_theta"`

	AccLimX     float64 `json:"acc_lim_x"`
	AccLimY     float64 `json:"acc_lim_y"`
	AccLimTheta float64 `json:"acc_lim_theta"`

	SamplesX     int `json:"samples_x"`
	SamplesY     int `json:"samples_y"`
	SamplesTheta int `json:"samples_theta"`
}

// DefaultLimits describes a differential drive base: no lateral motion.
func DefaultLimits() Limits {
	return Limits{
		MinVelX:      -0.5,
		MaxVelX:      1.0,
		MinVelTheta:  -1.5,
		MaxVelTheta:  1.5,
		AccLimX:      2.5,
		AccLimTheta:  3.2,
		SamplesX:     5,
		SamplesY:     1,
		SamplesTheta: 7,
	}
}

// Validate checks that each axis has a non-empty range and at least one sample.
func (l Limits) Validate() error {
	axes := []struct {
		name        string
		lo, hi, acc float64
		samples     int
	}{
		{"x", l.MinVelX, l.MaxVelX, l.AccLimX, l.SamplesX},
		{"y", l.MinVelY, l.MaxVelY, l.AccLimY, l.SamplesY},
		{"theta", l.MinVelTheta, l.MaxVelTheta, l.AccLimTheta, l.SamplesTheta},
	}
	for _, axis := range axes {
		if axis.lo > axis.hi {
			return errors.Errorf("min velocity %s (%v) is above max (%v)", axis.name, axis.lo, axis.hi)
		}
		if axis.acc < 0 {
			return errors.Errorf("acceleration limit %s cannot be negative", axis.name)
		}
		if axis.samples < 1 {
			return errors.Errorf("need at least one %s sample", axis.name)
		}
	}
	return nil
}

// Sampler enumerates the velocities reachable from a current velocity within one control period.
type Sampler struct {
	limits Limits
	dt     float64
}

// NewSampler returns a sampler for the given limits and control period.
func NewSampler(limits Limits, controlPeriod time.Duration) (*Sampler, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if controlPeriod <= 0 {
		return nil, errors.New("control period must be positive")
	}
	return &Sampler{limits: limits, dt: controlPeriod.Seconds()}, nil
}

// NumSamples is the fixed size of every Sample result.
func (s *Sampler) NumSamples() int {
	return s.limits.SamplesX * s.limits.SamplesY * s.limits.SamplesTheta
}

// Sample returns the dynamic window grid around current. The (clamped) current velocity is always
// one of the samples, so holding velocity is always a candidate.
func (s *Sampler) Sample(current spatialmath.Velocity) []spatialmath.Velocity {
	xs := s.axis(current.X, s.limits.MinVelX, s.limits.MaxVelX, s.limits.AccLimX, s.limits.SamplesX)
	ys := s.axis(current.Y, s.limits.MinVelY, s.limits.MaxVelY, s.limits.AccLimY, s.limits.SamplesY)
	ths := s.axis(current.Theta, s.limits.MinVelTheta, s.limits.MaxVelTheta, s.limits.AccLimTheta, s.limits.SamplesTheta)

	out := make([]spatialmath.Velocity, 0, len(xs)*len(ys)*len(ths))
	for _, x := range xs {
		for _, y := range ys {
			for _, th := range ths {
				out = append(out, spatialmath.Velocity{X: x, Y: y, Theta: th})
			}
		}
	}
	return out
}

func (s *Sampler) axis(v, lo, hi, acc float64, n int) []float64 {
	held := math.Max(lo, math.Min(hi, v))
	low := math.Max(lo, v-acc*s.dt)
	high := math.Min(hi, v+acc*s.dt)
	if low > high {
		low, high = held, held
	}
	if n == 1 {
		return []float64{held}
	}
	values := floats.Span(make([]float64, n), low, high)

	// swap the grid value nearest the held velocity for the held velocity itself
	nearest := 0
	for i := range values {
		if math.Abs(values[i]-held) < math.Abs(values[nearest]-held) {
			nearest = i
		}
	}
	values[nearest] = held
	return values
}
