// Package goaldist scores trajectories by how close their final pose ends up to the goal.
package goaldist

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan/scoring"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/registry"
	"go.viam.com/xdwa/spatialmath"
)

// Name is the registered name of this score function.
const Name = "goal-distance"

func init() {
	registry.RegisterScoreFunction(Name, registry.ScoreFunction{
		Constructor: func(ctx context.Context, conf interface{}, logger logging.Logger) (interface{}, error) {
			c, ok := conf.(*Config)
			if !ok {
				return nil, errors.Errorf("expected *goaldist.Config but got %T", conf)
			}
			return New(*c, logger)
		},
		AttributeMapConverter: func(attributes registry.AttributeMap) (interface{}, error) {
			conf := DefaultConfig()
			if err := registry.DecodeAttributeMap(attributes, &conf); err != nil {
				return nil, err
			}
			return &conf, nil
		},
	})
}

// Config weighs the two error terms of the final pose.
type Config struct {
	DistanceWeight float64 `json:"distance_weight"`
	HeadingWeight  float64 `json:"heading_weight"`
}

// DefaultConfig scores by euclidean distance only.
func DefaultConfig() Config {
	return Config{DistanceWeight: 1}
}

// Validate rejects negative weights, which would turn a cost into a veto.
func (c Config) Validate() error {
	if c.DistanceWeight < 0 || c.HeadingWeight < 0 {
		return errors.New("goal distance weights cannot be negative")
	}
	return nil
}

// ScoreFunction is the goal distance criterion.
type ScoreFunction struct {
	weights []float64
	logger  logging.Logger
	ctx     scoring.Context
}

// New returns an uninitialized goal distance function.
func New(conf Config, logger logging.Logger) (*ScoreFunction, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &ScoreFunction{
		weights: []float64{conf.DistanceWeight, conf.HeadingWeight},
		logger:  logger,
	}, nil
}

// Name implements scoring.Named.
func (sf *ScoreFunction) Name() string {
	return Name
}

// Initialize binds the goal source.
func (sf *ScoreFunction) Initialize(ctx scoring.Context) error {
	if ctx.Goal == nil {
		return errors.New("goal distance needs a goal source")
	}
	sf.ctx = ctx
	return nil
}

// Score returns the weighted distance and heading error between the final pose and the goal.
// With no goal it contributes nothing.
func (sf *ScoreFunction) Score(traj *trajectory.Trajectory) float64 {
	if traj.NumPoints() == 0 {
		return 0
	}
	goal, ok := sf.ctx.Goal()
	if !ok {
		return 0
	}
	if sf.ctx.GlobalFrame != "" && goal.Frame != sf.ctx.GlobalFrame && sf.ctx.Transformer != nil {
		localized, err := sf.ctx.Transformer.LookupAndApply(context.Background(), goal, sf.ctx.GlobalFrame)
		if err != nil {
			sf.logger.Debugw("goal not localized, not scoring", "frame", goal.Frame, "error", err)
			return 0
		}
		goal = localized
	}

	end := traj.Last().Pose
	errs := []float64{
		spatialmath.Distance(end, goal.Pose),
		math.Abs(spatialmath.AngleDiff(goal.Pose.Yaw, end.Yaw)),
	}
	return floats.Dot(sf.weights, errs)
}
