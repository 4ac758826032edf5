package motionplan

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan/scoring"
	"go.viam.com/xdwa/motionplan/scoring/goaldist"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/spatialmath"
)

type scoreFunc func(traj *trajectory.Trajectory) float64

func (f scoreFunc) Initialize(ctx scoring.Context) error { return nil }

func (f scoreFunc) Score(traj *trajectory.Trajectory) float64 { return f(traj) }

func newSampler(t *testing.T) *trajectory.Sampler {
	t.Helper()
	sampler, err := trajectory.NewSampler(trajectory.DefaultLimits(), time.Second)
	test.That(t, err, test.ShouldBeNil)
	return sampler
}

func goalDistanceScorer(t *testing.T, x, y float64) *scoring.Scorer {
	t.Helper()
	fn, err := goaldist.New(goaldist.DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fn.Initialize(scoring.Context{Goal: func() (spatialmath.PoseStamped, bool) {
		return spatialmath.PoseStamped{Frame: "map", Pose: spatialmath.NewPose2D(x, y, 0)}, true
	}}), test.ShouldBeNil)
	return scoring.NewScorer(fn)
}

func newSearcher(t *testing.T, opts SearchOptions, scorer TrajectoryScorer) *Searcher {
	t.Helper()
	s, err := NewSearcher(opts, newSampler(t), scorer, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return s
}

func TestSearchSingleRound(t *testing.T) {
	s := newSearcher(t, DefaultSearchOptions(), goalDistanceScorer(t, 5, 0))

	res, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Evaluations, test.ShouldEqual, 35)
	test.That(t, res.Kept, test.ShouldHaveLength, 10)
	test.That(t, res.Best.Velocity(0), test.ShouldResemble, spatialmath.Velocity{X: 1})
	test.That(t, res.Best.Cost, test.ShouldAlmostEqual, 2.0, 1e-9)
	test.That(t, res.Best.NumPoints(), test.ShouldEqual, 50)
	test.That(t, res.Best.NumPointsScored, test.ShouldEqual, 50)
	for _, kept := range res.Kept {
		test.That(t, kept.Cost, test.ShouldBeGreaterThanOrEqualTo, res.Best.Cost)
	}
}

func TestSearchLookahead(t *testing.T) {
	opts := DefaultSearchOptions()
	opts.Depth = 2
	s := newSearcher(t, opts, goalDistanceScorer(t, 5, 0))

	res, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Evaluations, test.ShouldEqual, 35+10*35)
	test.That(t, res.Kept, test.ShouldHaveLength, 10)
	test.That(t, res.Best.NumPoints(), test.ShouldEqual, 100)
	test.That(t, res.Best.Cost, test.ShouldBeLessThan, 1.0)
	test.That(t, res.Best.Velocity(0).X, test.ShouldBeGreaterThan, 0)
}

func TestSearchEvaluationBound(t *testing.T) {
	sampler := newSampler(t)
	for depth := 1; depth <= 3; depth++ {
		for _, k := range []int{1, 3, 10} {
			opts := SearchOptions{Depth: depth, NumBest: k, NumSteps: 5, SimTime: 1}
			s, err := NewSearcher(opts, sampler, goalDistanceScorer(t, 5, 0), logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			res, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
			test.That(t, err, test.ShouldBeNil)
			bound := sampler.NumSamples() + (depth-1)*k*sampler.NumSamples()
			test.That(t, res.Evaluations, test.ShouldBeLessThanOrEqualTo, bound)
			test.That(t, len(res.Kept), test.ShouldBeLessThanOrEqualTo, k)
		}
	}
}

func TestSearchVeto(t *testing.T) {
	noReverse := scoring.NewScorer(scoreFunc(func(traj *trajectory.Trajectory) float64 {
		for _, p := range traj.Points() {
			if p.Velocity.X < 0 {
				return -1
			}
		}
		return 0
	}))
	opts := DefaultSearchOptions()
	opts.Depth = 2
	opts.NumBest = 100
	s := newSearcher(t, opts, noReverse)

	res, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(res.Kept), test.ShouldBeGreaterThan, 0)
	for _, kept := range res.Kept {
		test.That(t, kept.Cost, test.ShouldBeGreaterThanOrEqualTo, 0)
		for _, p := range kept.Points() {
			test.That(t, p.Velocity.X, test.ShouldBeGreaterThanOrEqualTo, 0)
		}
	}
}

func TestSearchAllRejected(t *testing.T) {
	rejectAll := scoring.NewScorer(scoreFunc(func(traj *trajectory.Trajectory) float64 { return -1 }))
	s := newSearcher(t, DefaultSearchOptions(), rejectAll)

	res, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, res, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrNoValidTrajectory), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "round 0")
}

func TestSearchRejectedInLaterRound(t *testing.T) {
	shortOnly := scoring.NewScorer(scoreFunc(func(traj *trajectory.Trajectory) float64 {
		if traj.NumPoints() > 50 {
			return -1
		}
		return 1
	}))
	opts := DefaultSearchOptions()
	opts.Depth = 2
	s := newSearcher(t, opts, shortOnly)

	_, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, errors.Is(err, ErrNoValidTrajectory), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "round 1")
}

func TestSearchNoScoreFunctions(t *testing.T) {
	sampler := newSampler(t)
	s, err := NewSearcher(DefaultSearchOptions(), sampler, scoring.NewScorer(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	res, err := s.Search(context.Background(), spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Best.Cost, test.ShouldEqual, 0.0)

	// every candidate ties, so the first sample wins and the first ten are kept
	samples := sampler.Sample(spatialmath.Velocity{})
	test.That(t, res.Best.Velocity(0), test.ShouldResemble, samples[0])
	for i, kept := range res.Kept {
		test.That(t, kept.Velocity(0), test.ShouldResemble, samples[i])
	}
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultSearchOptions()
	opts.Depth = 3
	s := newSearcher(t, opts, goalDistanceScorer(t, 5, 0))
	_, err := s.Search(ctx, spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	// a single round never looks at the context
	s = newSearcher(t, DefaultSearchOptions(), goalDistanceScorer(t, 5, 0))
	res, err := s.Search(ctx, spatialmath.Pose2D{}, spatialmath.Velocity{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Best, test.ShouldNotBeNil)
}

func TestSearchDeterministic(t *testing.T) {
	opts := DefaultSearchOptions()
	opts.Depth = 2
	s := newSearcher(t, opts, goalDistanceScorer(t, 3, 2))

	start := spatialmath.NewPose2D(0.5, -0.5, 0.3)
	vel := spatialmath.Velocity{X: 0.4, Theta: 0.1}
	a, err := s.Search(context.Background(), start, vel)
	test.That(t, err, test.ShouldBeNil)
	b, err := s.Search(context.Background(), start, vel)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Best.Points(), test.ShouldResemble, b.Best.Points())
	test.That(t, a.Best.Cost, test.ShouldEqual, b.Best.Cost)
}

func TestSearchOptionsValidate(t *testing.T) {
	test.That(t, DefaultSearchOptions().Validate(), test.ShouldBeNil)

	bad := []SearchOptions{
		{Depth: 0, NumBest: 1, NumSteps: 1, SimTime: 1},
		{Depth: 1, NumBest: 0, NumSteps: 1, SimTime: 1},
		{Depth: 1, NumBest: 1, NumSteps: 0, SimTime: 1},
		{Depth: 1, NumBest: 1, NumSteps: 1, SimTime: 0},
	}
	for _, opts := range bad {
		_, err := NewSearcher(opts, newSampler(t), scoring.NewScorer(), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldNotBeNil)
	}
	_, err := NewSearcher(DefaultSearchOptions(), nil, scoring.NewScorer(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
