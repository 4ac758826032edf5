// Package motionplan searches short horizon trajectories for a mobile base. A search samples
// reachable velocities, simulates and scores them, and keeps the best few for the next round of
// lookahead.
package motionplan

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/spatialmath"
)

// Default search options.
const (
	defaultDepth    = 1
	defaultNumBest  = 10
	defaultNumSteps = 50
	defaultSimTime  = 3.0
)

// VelocitySampler produces the candidate velocities reachable from a current velocity.
type VelocitySampler interface {
	Sample(current spatialmath.Velocity) []spatialmath.Velocity
}

// TrajectoryScorer assigns a cost to a trajectory; a negative cost rejects it.
type TrajectoryScorer interface {
	Score(traj *trajectory.Trajectory)
}

// SearchOptions bound the lookahead tree.
type SearchOptions struct {
	// Depth is the number of chained simulation rounds.
	Depth int `json:"depth"`
	// NumBest is the beam width kept after every round.
	NumBest int `json:"num_best_trajectories"`
	// NumSteps is the number of integration steps per round.
	NumSteps int `json:"num_steps"`
	// SimTime is the simulated seconds per round.
	SimTime float64 `json:"sim_time_sec"`
}

// DefaultSearchOptions is a single round keeping ten candidates over a three second horizon.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Depth:    defaultDepth,
		NumBest:  defaultNumBest,
		NumSteps: defaultNumSteps,
		SimTime:  defaultSimTime,
	}
}

// Validate checks that the options describe a non-empty search.
func (opts SearchOptions) Validate() error {
	switch {
	case opts.Depth < 1:
		return errors.Errorf("depth must be at least 1, got %d", opts.Depth)
	case opts.NumBest < 1:
		return errors.Errorf("num_best_trajectories must be at least 1, got %d", opts.NumBest)
	case opts.NumSteps < 1:
		return errors.Errorf("num_steps must be at least 1, got %d", opts.NumSteps)
	case !(opts.SimTime > 0):
		return errors.Errorf("sim_time_sec must be positive, got %v", opts.SimTime)
	}
	return nil
}

// Result is the outcome of one search.
type Result struct {
	// Best is the lowest cost trajectory of the final round.
	Best *trajectory.Trajectory
	// Kept is every trajectory that survived the final round.
	Kept []*trajectory.Trajectory
	// Evaluations counts scored trajectories across all rounds.
	Evaluations int
}

// Searcher runs the beam search. It holds no state between searches.
type Searcher struct {
	opts    SearchOptions
	sampler VelocitySampler
	scorer  TrajectoryScorer
	logger  logging.Logger
}

// NewSearcher returns a searcher over the given sampler and scorer.
func NewSearcher(opts SearchOptions, sampler VelocitySampler, scorer TrajectoryScorer, logger logging.Logger) (*Searcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil || scorer == nil {
		return nil, errors.New("searcher needs a sampler and a scorer")
	}
	return &Searcher{opts: opts, sampler: sampler, scorer: scorer, logger: logger}, nil
}

// Options returns the options the searcher was built with.
func (s *Searcher) Options() SearchOptions {
	return s.opts
}

// Search expands trajectories from start at velocity vel for the configured number of rounds and
// returns the cheapest. It fails with ErrNoValidTrajectory when a round rejects every candidate.
// ctx is consulted between rounds.
func (s *Searcher) Search(ctx context.Context, start spatialmath.Pose2D, vel spatialmath.Velocity) (*Result, error) {
	res := &Result{}

	var candidates []*trajectory.Trajectory
	for _, v := range s.sampler.Sample(vel) {
		traj, err := trajectory.Generate(v, start.X, start.Y, start.Yaw, s.opts.SimTime, s.opts.NumSteps)
		if err != nil {
			return nil, errors.Wrap(err, "simulating from start")
		}
		candidates = s.scoreAndFilter(candidates, traj, res)
	}
	if len(candidates) == 0 {
		return nil, NewNoValidTrajectoryError(0, res.Evaluations)
	}
	kept := SelectBest(candidates, s.opts.NumBest)

	for round := 1; round < s.opts.Depth; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evaluated := res.Evaluations
		candidates = candidates[:0:0]
		for _, parent := range kept {
			for _, v := range s.sampler.Sample(parent.LastVelocity()) {
				traj, err := trajectory.Extend(parent, v, s.opts.SimTime, s.opts.NumSteps)
				if err != nil {
					return nil, errors.Wrapf(err, "extending in round %d", round)
				}
				candidates = s.scoreAndFilter(candidates, traj, res)
			}
		}
		if len(candidates) == 0 {
			return nil, NewNoValidTrajectoryError(round, res.Evaluations-evaluated)
		}
		kept = SelectBest(candidates, s.opts.NumBest)
	}

	res.Kept = kept
	res.Best = lowestCost(kept)
	if s.logger != nil {
		s.logger.Debugw("search done",
			"evaluations", res.Evaluations,
			"kept", len(kept),
			"best_cost", res.Best.Cost,
			"best_velocity", res.Best.Velocity(0).String())
	}
	return res, nil
}

func (s *Searcher) scoreAndFilter(
	candidates []*trajectory.Trajectory,
	traj *trajectory.Trajectory,
	res *Result,
) []*trajectory.Trajectory {
	s.scorer.Score(traj)
	res.Evaluations++
	if !traj.Valid() {
		return candidates
	}
	return append(candidates, traj)
}
