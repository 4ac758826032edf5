package trajectory

import (
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/xdwa/spatialmath"
)

func TestSamplerDefaults(t *testing.T) {
	s, err := NewSampler(DefaultLimits(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.NumSamples(), test.ShouldEqual, 35)

	samples := s.Sample(spatialmath.Velocity{})
	test.That(t, samples, test.ShouldHaveLength, 35)
	test.That(t, samples, test.ShouldContain, spatialmath.Velocity{})

	limits := DefaultLimits()
	for _, v := range samples {
		test.That(t, v.X, test.ShouldBeGreaterThanOrEqualTo, limits.MinVelX)
		test.That(t, v.X, test.ShouldBeLessThanOrEqualTo, limits.MaxVelX)
		test.That(t, v.Y, test.ShouldEqual, 0.0)
		test.That(t, v.Theta, test.ShouldBeGreaterThanOrEqualTo, limits.MinVelTheta)
		test.That(t, v.Theta, test.ShouldBeLessThanOrEqualTo, limits.MaxVelTheta)
	}
}

func TestSamplerHoldsCurrentVelocity(t *testing.T) {
	s, err := NewSampler(DefaultLimits(), 100*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	cur := spatialmath.Velocity{X: 0.3, Theta: -0.2}
	samples := s.Sample(cur)
	test.That(t, samples, test.ShouldHaveLength, s.NumSamples())
	test.That(t, samples, test.ShouldContain, cur)

	// the window is bounded by what is reachable in one period
	for _, v := range samples {
		test.That(t, v.X, test.ShouldBeGreaterThanOrEqualTo, 0.3-0.25-1e-9)
		test.That(t, v.X, test.ShouldBeLessThanOrEqualTo, 0.3+0.25+1e-9)
		test.That(t, v.Theta, test.ShouldBeGreaterThanOrEqualTo, -0.2-0.32-1e-9)
		test.That(t, v.Theta, test.ShouldBeLessThanOrEqualTo, -0.2+0.32+1e-9)
	}

	again := s.Sample(cur)
	test.That(t, again, test.ShouldResemble, samples)
}

func TestSamplerOutsideLimits(t *testing.T) {
	s, err := NewSampler(DefaultLimits(), 100*time.Millisecond)
	test.That(t, err, test.ShouldBeNil)

	samples := s.Sample(spatialmath.Velocity{X: 5})
	test.That(t, samples, test.ShouldHaveLength, s.NumSamples())
	for _, v := range samples {
		test.That(t, v.X, test.ShouldEqual, 1.0)
	}
	test.That(t, samples, test.ShouldContain, spatialmath.Velocity{X: 1.0})
}

func TestSamplerValidation(t *testing.T) {
	_, err := NewSampler(DefaultLimits(), 0)
	test.That(t, err, test.ShouldNotBeNil)

	limits := DefaultLimits()
	limits.SamplesTheta = 0
	_, err = NewSampler(limits, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "theta")

	limits = DefaultLimits()
	limits.MinVelX = 2
	_, err = NewSampler(limits, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "above max")
}
