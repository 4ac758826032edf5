// Package obstacle scores trajectories against the costmap, vetoing any that would put the
// footprint on a lethal cell.
package obstacle

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan/scoring"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/registry"
	"go.viam.com/xdwa/spatialmath"
)

// Name is the registered name of this score function.
const Name = "costmap"

func init() {
	registry.RegisterScoreFunction(Name, registry.ScoreFunction{
		Constructor: func(ctx context.Context, conf interface{}, logger logging.Logger) (interface{}, error) {
			c, ok := conf.(*Config)
			if !ok {
				return nil, errors.Errorf("expected *obstacle.Config but got %T", conf)
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

// Config controls which cells are fatal and how the rest are weighted.
type Config struct {
	LethalCost      int     `json:"lethal_cost"`
	UnknownIsLethal bool    `json:"unknown_is_lethal"`
	OutsideIsLethal bool    `json:"outside_is_lethal"`
	Scale           float64 `json:"scale"`
}

// DefaultConfig treats unknown space as an obstacle and off-map space as free.
func DefaultConfig() Config {
	return Config{
		LethalCost:      int(costmap.Lethal),
		UnknownIsLethal: true,
		Scale:           1,
	}
}

// Validate checks the threshold and scale.
func (c Config) Validate() error {
	if c.LethalCost < 1 || c.LethalCost > int(costmap.Lethal) {
		return errors.Errorf("lethal_cost must be in [1, %d], got %d", costmap.Lethal, c.LethalCost)
	}
	if c.Scale < 0 {
		return errors.New("scale cannot be negative")
	}
	return nil
}

// ScoreFunction is the costmap criterion.
type ScoreFunction struct {
	conf      Config
	logger    logging.Logger
	costmap   *costmap.Costmap
	footprint spatialmath.Footprint
}

// New returns an uninitialized costmap function.
func New(conf Config, logger logging.Logger) (*ScoreFunction, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &ScoreFunction{conf: conf, logger: logger}, nil
}

// Name implements scoring.Named.
func (sf *ScoreFunction) Name() string {
	return Name
}

// Initialize binds the costmap and robot footprint.
func (sf *ScoreFunction) Initialize(ctx scoring.Context) error {
	if ctx.Costmap == nil {
		return errors.New("costmap scoring needs a costmap")
	}
	if err := ctx.Footprint.Validate(); err != nil {
		return errors.Wrap(err, "costmap scoring needs a footprint")
	}
	sf.costmap = ctx.Costmap
	sf.footprint = ctx.Footprint
	return nil
}

// Score places the footprint at every pose of traj. It returns -1 if any placement touches a
// lethal cell (or unknown or off-map space, when configured so) and otherwise the scaled mean of
// the highest cell cost under each placement. Before the first map arrives it contributes
// nothing.
func (sf *ScoreFunction) Score(traj *trajectory.Trajectory) float64 {
	if !sf.costmap.Ready() || traj.NumPoints() == 0 {
		return 0
	}
	lethal := int8(sf.conf.LethalCost)

	var total float64
	for _, p := range traj.Points() {
		cost := sf.costmap.FootprintCost(sf.footprint.Transform(p.Pose))
		switch {
		case cost.Max >= lethal:
			return -1
		case cost.Unknown && sf.conf.UnknownIsLethal:
			return -1
		case cost.Outside && sf.conf.OutsideIsLethal:
			return -1
		}
		total += float64(cost.Max) / float64(costmap.Lethal)
	}
	return sf.conf.Scale * total / float64(traj.NumPoints())
}
