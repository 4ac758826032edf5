package navigation

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/xdwa/control"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/ros"
	"go.viam.com/xdwa/spatialmath"
)

// controlLoop drives toward one goal. It lives for one execution and is never reused.
type controlLoop struct {
	p      *Planner
	id     uuid.UUID
	goal   spatialmath.PoseStamped
	logger logging.Logger
	seq    uint32
}

func newControlLoop(p *Planner, id uuid.UUID, goal spatialmath.PoseStamped) *controlLoop {
	return &controlLoop{
		p:      p,
		id:     id,
		goal:   goal,
		logger: p.logger.Sublogger("loop"),
	}
}

// run returns when the goal is reached or ctx is done. A cancelled loop publishes nothing more.
func (cl *controlLoop) run(ctx context.Context) {
	cl.p.setState(StateAwaitingLocalizableGoal)
	goal, ok := cl.awaitLocalizableGoal(ctx)
	if !ok {
		cl.cancelled()
		return
	}
	cl.p.runtime.setLocalGoal(goal)

	cl.p.setState(StateTracking)
	if !cl.track(ctx, goal) {
		cl.cancelled()
		return
	}

	cl.publishVelocity(spatialmath.Velocity{})
	cl.logger.Infow("goal reached", "execution_id", cl.id.String())
	cl.p.setState(StateReached)
}

func (cl *controlLoop) cancelled() {
	cl.p.setState(StateCancelled)
	cl.logger.Debugw("control loop cancelled", "execution_id", cl.id.String())
}

// awaitLocalizableGoal retries expressing the goal in the global frame until it works.
func (cl *controlLoop) awaitLocalizableGoal(ctx context.Context) (spatialmath.PoseStamped, bool) {
	rate, err := control.NewRate(cl.p.clk, cl.p.conf.GoalRetryHz)
	if err != nil {
		cl.logger.Errorw("cannot pace goal localization", "error", err)
		return spatialmath.PoseStamped{}, false
	}
	for {
		if ctx.Err() != nil {
			return spatialmath.PoseStamped{}, false
		}
		goal, err := cl.lookup(ctx, cl.goal, "goal")
		if err == nil {
			return goal, true
		}
		cl.logger.Warnw("cannot localize goal, retrying",
			"frame", cl.goal.Frame,
			"global_frame", cl.p.conf.GlobalFrame,
			"error", err)
		if !rate.Sleep(ctx) {
			return spatialmath.PoseStamped{}, false
		}
	}
}

// track runs control cycles until the goal is reached, returning false if ctx ended first.
func (cl *controlLoop) track(ctx context.Context, goal spatialmath.PoseStamped) bool {
	rate, err := control.NewRate(cl.p.clk, cl.p.conf.ControlFrequencyHz)
	if err != nil {
		cl.logger.Errorw("cannot pace control loop", "error", err)
		return false
	}
	deadline := cl.p.conf.Deadline()
	for {
		// the only cancellation check per cycle; the search and lookup below run to completion
		if ctx.Err() != nil {
			return false
		}

		odom, ok := cl.p.runtime.odometry()
		if !ok {
			cl.logger.Debug("no odometry yet")
			if !rate.Sleep(ctx) {
				return false
			}
			continue
		}
		pose, err := cl.lookup(ctx, odom.pose, "robot pose")
		if err != nil {
			cl.logger.Infow("could not get robot pose", "error", err)
			cl.p.updateStats(func(stats *CycleStats) { stats.PoseFailures++ })
			if !rate.Sleep(ctx) {
				return false
			}
			continue
		}
		cl.p.runtime.setPose(pose)

		start := cl.p.clk.Now()
		cl.cycle(ctx, pose, odom.vel)
		took := cl.p.clk.Since(start)
		overran := took > deadline
		if overran {
			cl.logger.Warnw("control loop overran its period",
				"desired_hz", cl.p.conf.ControlFrequencyHz,
				"deadline", deadline,
				"took", took)
		}
		cl.p.updateStats(func(stats *CycleStats) {
			stats.Cycles++
			stats.LastCycle = took
			if overran {
				stats.Overruns++
			}
		})
		if !rate.Sleep(ctx) {
			return false
		}

		if reached(pose.Pose, goal.Pose, cl.p.conf.XYGoalTolerance) {
			return true
		}
	}
}

// cycle searches from pose and publishes the winning command and the kept trajectories.
func (cl *controlLoop) cycle(ctx context.Context, pose spatialmath.PoseStamped, vel spatialmath.Velocity) {
	res, err := cl.p.searcher.Search(ctx, pose.Pose, vel)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		cl.logger.Infow("failed to produce a valid path",
			"no_valid_trajectory", errors.Is(err, motionplan.ErrNoValidTrajectory),
			"error", err)
		cl.p.updateStats(func(stats *CycleStats) { stats.SearchFailures++ })
		return
	}

	cl.p.updateStats(func(stats *CycleStats) {
		stats.LastCost = res.Best.Cost
		stats.Evaluations = res.Evaluations
	})
	cl.publishVelocity(res.Best.Velocity(0))
	cl.publishPath(res.Kept)
}

// lookup expresses pose in the global frame. A slow lookup is only logged.
func (cl *controlLoop) lookup(ctx context.Context, pose spatialmath.PoseStamped, what string) (spatialmath.PoseStamped, error) {
	start := cl.p.clk.Now()
	out, err := cl.p.transformer.LookupAndApply(ctx, pose, cl.p.conf.GlobalFrame)
	if err != nil {
		return spatialmath.PoseStamped{}, err
	}
	if took := cl.p.clk.Since(start); took > cl.p.conf.TransformTimeout() {
		cl.logger.Warnw("transform lookup exceeded timeout",
			"what", what,
			"source", pose.Frame,
			"target", cl.p.conf.GlobalFrame,
			"took", took,
			"timeout", cl.p.conf.TransformTimeout())
	}
	return out, nil
}

func (cl *controlLoop) publishVelocity(vel spatialmath.Velocity) {
	cl.p.bus.Publish(cl.p.conf.CmdVelTopic, ros.NewTwist(vel))
	cl.p.updateStats(func(stats *CycleStats) { stats.Published++ })
}

func (cl *controlLoop) publishPath(kept []*trajectory.Trajectory) {
	cl.seq++
	header := ros.Header{
		Seq:     cl.seq,
		Stamp:   ros.NewTime(cl.p.clk.Now()),
		FrameID: cl.p.conf.GlobalFrame,
	}
	poses := lo.FlatMap(kept, func(traj *trajectory.Trajectory, _ int) []spatialmath.Pose2D {
		return traj.Poses()
	})
	cl.p.bus.Publish(cl.p.conf.PathTopic, ros.NewPath(header, poses))
}

// reached compares position only, strictly inside the tolerance.
func reached(pose, goal spatialmath.Pose2D, tolerance float64) bool {
	return math.Hypot(goal.X-pose.X, goal.Y-pose.Y) < tolerance
}
