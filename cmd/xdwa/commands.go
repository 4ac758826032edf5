package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/plot/vg"

	"go.viam.com/xdwa/components/base/fake"
	"go.viam.com/xdwa/config"
	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan"
	"go.viam.com/xdwa/motionplan/scoring"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/motionplan/visualize"
	"go.viam.com/xdwa/referenceframe"
	"go.viam.com/xdwa/registry"
	"go.viam.com/xdwa/ros"
	"go.viam.com/xdwa/services/navigation"
	"go.viam.com/xdwa/spatialmath"
)

const (
	defaultRunTimeout = time.Minute
	statusPollTime    = 100 * time.Millisecond
	plotSize          = 6 * vg.Inch
)

func loadConfig(c *cli.Context, logger logging.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String(flagConfig); path != "" {
		cfg, err = config.Read(c.Context, path, logger)
	} else {
		cfg, err = config.FromReader(c.Context, "", strings.NewReader("{}"), logger)
	}
	if err != nil {
		return nil, err
	}
	if !c.Bool(flagDebug) {
		logger.SetLevel(cfg.LogLevel)
	}
	return cfg, nil
}

func goalFromFlags(c *cli.Context) spatialmath.PoseStamped {
	return spatialmath.PoseStamped{
		Frame: c.String(flagGoalFrame),
		Stamp: time.Now(),
		Pose:  spatialmath.NewPose2D(c.Float64(flagGoalX), c.Float64(flagGoalY), c.Float64(flagGoalYaw)),
	}
}

// system is a planner wired to a bus, a static frame system and optionally a simulated base.
type system struct {
	cfg     *config.Config
	bus     *ros.Bus
	frames  *referenceframe.FrameSystem
	costmap *costmap.Costmap
	base    *fake.Base
	planner *navigation.Planner
}

func newSystem(ctx context.Context, cfg *config.Config, withBase bool, logger logging.Logger) (*system, error) {
	frames, err := cfg.FrameSystem()
	if err != nil {
		return nil, err
	}
	cm, err := cfg.BuildCostmap()
	if err != nil {
		return nil, err
	}
	sys := &system{
		cfg:     cfg,
		bus:     ros.NewBus(logger.Sublogger("bus")),
		frames:  frames,
		costmap: cm,
	}
	if withBase {
		sys.base, err = fake.NewBase(cfg.Base, sys.bus, nil, logger.Sublogger("base"), true)
		if err != nil {
			return nil, err
		}
	}
	sys.planner, err = navigation.New(ctx, cfg.Planner, navigation.Dependencies{
		Bus:         sys.bus,
		Transformer: frames,
		Costmap:     cm,
	}, logger.Sublogger("planner"))
	if err != nil {
		return nil, multierr.Combine(err, sys.closeBase(ctx))
	}
	return sys, nil
}

func (sys *system) closeBase(ctx context.Context) error {
	if sys.base == nil {
		return nil
	}
	return sys.base.Close(ctx)
}

func (sys *system) Close(ctx context.Context) error {
	return multierr.Combine(sys.planner.Close(ctx), sys.closeBase(ctx))
}

func runAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	sys, err := newSystem(c.Context, cfg, true, logger)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(func() error { return sys.Close(context.Background()) })

	goal := goalFromFlags(c)
	sys.bus.Publish(cfg.Planner.GoalTopic, ros.NewPoseStamped(goal))

	timeout := c.Duration(flagTimeout)
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()
	for sys.planner.Status().State != navigation.StateReached {
		if !utils.SelectContextOrWait(ctx, statusPollTime) {
			return errors.Errorf("goal %s not reached within %s", goal.Pose, timeout)
		}
	}

	status := sys.planner.Status()
	fmt.Fprintf(c.App.Writer, "reached goal %s, base at %s after %d cycles (%d overruns)\n",
		status.LocalizedGoal.Pose, sys.base.Pose().Pose, status.Stats.Cycles, status.Stats.Overruns)
	return nil
}

func plotAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	frames, err := cfg.FrameSystem()
	if err != nil {
		return err
	}
	cm, err := cfg.BuildCostmap()
	if err != nil {
		return err
	}
	goal, err := frames.LookupAndApply(c.Context, goalFromFlags(c), cfg.Planner.GlobalFrame)
	if err != nil {
		return errors.Wrap(err, "localizing goal")
	}
	start := spatialmath.PoseStamped{
		Frame: cfg.Planner.GlobalFrame,
		Pose:  spatialmath.NewPose2D(c.Float64(flagStartX), c.Float64(flagStartY), c.Float64(flagStartYaw)),
	}

	sampler, err := trajectory.NewSampler(*cfg.Planner.VelocityLimits, cfg.Planner.ControlPeriod())
	if err != nil {
		return err
	}
	fns, err := scoring.Load(c.Context, cfg.Planner.ScoreFunctions, cfg.Planner.ScoreFunctionAttributes, scoring.Context{
		Transformer: frames,
		GlobalFrame: cfg.Planner.GlobalFrame,
		Footprint:   cfg.Planner.Footprint,
		Goal:        func() (spatialmath.PoseStamped, bool) { return goal, true },
		Pose:        func() (spatialmath.PoseStamped, bool) { return start, true },
		Costmap:     cm,
		Logger:      logger,
	}, logger)
	if err != nil {
		logger.Warnw("continuing without some score functions", "error", err)
	}
	searcher, err := motionplan.NewSearcher(cfg.Planner.SearchOptions, sampler, scoring.NewScorer(fns...), logger)
	if err != nil {
		return err
	}
	res, err := searcher.Search(c.Context, start.Pose, spatialmath.Velocity{X: c.Float64(flagStartVX)})
	if err != nil {
		return err
	}

	scene := visualize.Scene{
		Title:     fmt.Sprintf("%d evaluations, best cost %.3f", res.Evaluations, res.Best.Cost),
		Start:     start.Pose,
		Footprint: cfg.Planner.Footprint,
		Goal:      &goal.Pose,
		Kept:      res.Kept,
		Best:      res.Best,
	}
	if cfg.Costmap != nil {
		scene.Obstacles = cfg.Costmap.Obstacles
	}
	out := c.String(flagOut)
	if err := scene.Save(out, plotSize, plotSize); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "best command %s, wrote %s\n", res.Best.Velocity(0), out)
	return nil
}

func pluginsAction(c *cli.Context) error {
	for _, name := range registry.RegisteredScoreFunctionNames() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func replayAction(c *cli.Context, logger logging.Logger) error {
	cfg, err := loadConfig(c, logger)
	if err != nil {
		return err
	}
	rb, err := ros.ReadBag(c.String(flagBag))
	if err != nil {
		return err
	}
	msgs, err := ros.LoadBag(rb,
		ros.PoseStampedTopic(cfg.Planner.GoalTopic),
		ros.OdometryTopic(cfg.Planner.OdomTopic),
		ros.OccupancyGridTopic(cfg.Planner.CostmapTopic),
	)
	if err != nil {
		return err
	}
	logger.Infow("replaying bag", "messages", len(msgs))

	sys, err := newSystem(c.Context, cfg, false, logger)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(func() error { return sys.Close(context.Background()) })

	var commands atomic.Int64
	ros.Subscribe(sys.bus, cfg.Planner.CmdVelTopic, func(ros.Twist) { commands.Inc() })
	if err := ros.Replay(c.Context, clock.New(), sys.bus, msgs); err != nil {
		return err
	}
	status := sys.planner.Status()
	fmt.Fprintf(c.App.Writer, "replayed %d messages, %d commands published, planner %s\n",
		len(msgs), commands.Load(), status.State)
	return nil
}
