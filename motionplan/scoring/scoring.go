// Package scoring evaluates simulated trajectories with a configurable chain of score functions.
package scoring

import (
	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/referenceframe"
	"go.viam.com/xdwa/spatialmath"
)

// ScoreFunction is one criterion of trajectory cost. A negative score rejects the trajectory.
type ScoreFunction interface {
	// Initialize binds the function to the planner's collaborators. It is called once before
	// the first Score.
	Initialize(ctx Context) error
	Score(traj *trajectory.Trajectory) float64
}

// A PoseSource returns the latest snapshot of a pose and whether one is available.
type PoseSource func() (spatialmath.PoseStamped, bool)

// Context carries what score functions may consult. It is built once and shared for the
// lifetime of the planner; each source synchronizes itself.
type Context struct {
	Transformer referenceframe.Transformer
	GlobalFrame string
	Footprint   spatialmath.Footprint
	Goal        PoseSource
	Pose        PoseSource
	Costmap     *costmap.Costmap
	Logger      logging.Logger
}

// Named is implemented by score functions that report their registered name.
type Named interface {
	Name() string
}
