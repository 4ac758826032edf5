package navigation

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/xdwa/components/base/fake"
	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/referenceframe"
	"go.viam.com/xdwa/registry"
	"go.viam.com/xdwa/ros"
	"go.viam.com/xdwa/spatialmath"
	"go.viam.com/xdwa/testutils/inject"
)

// commandRecorder collects published velocity commands.
type commandRecorder struct {
	mu   sync.Mutex
	cmds []spatialmath.Velocity
}

func recordCommands(bus *ros.Bus, topic string) *commandRecorder {
	rec := &commandRecorder{}
	ros.Subscribe(bus, topic, func(tw ros.Twist) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.cmds = append(rec.cmds, tw.Velocity())
	})
	return rec
}

func (rec *commandRecorder) all() []spatialmath.Velocity {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]spatialmath.Velocity(nil), rec.cmds...)
}

func testFrameSystem(t *testing.T) *referenceframe.FrameSystem {
	t.Helper()
	fs, err := referenceframe.NewFrameSystemFromConfig([]referenceframe.FrameConfig{
		{Name: "map", Parent: referenceframe.World},
		{Name: "odom", Parent: "map"},
	})
	test.That(t, err, test.ShouldBeNil)
	return fs
}

func fastConfig() Config {
	limits := trajectory.DefaultLimits()
	limits.MaxVelX = 2
	limits.AccLimX = 5
	return Config{
		ControlFrequencyHz: 50,
		GoalRetryHz:        50,
		SearchOptions: motionplan.SearchOptions{
			Depth:    1,
			NumBest:  5,
			NumSteps: 10,
			SimTime:  1,
		},
		VelocityLimits: &limits,
	}
}

type testPlanner struct {
	*Planner
	bus  *ros.Bus
	cmds *commandRecorder
	logs *observer.ObservedLogs
}

func newTestPlanner(t *testing.T, conf Config, transformer referenceframe.Transformer) *testPlanner {
	t.Helper()
	logger, logs := logging.NewObservedTestLogger(t)
	bus := ros.NewBus(logger)
	cmds := recordCommands(bus, "/cmd_vel")
	p, err := New(context.Background(), conf, Dependencies{Bus: bus, Transformer: transformer}, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { test.That(t, p.Close(context.Background()), test.ShouldBeNil) })
	return &testPlanner{Planner: p, bus: bus, cmds: cmds, logs: logs}
}

func odomAt(x, y, yaw float64) spatialmath.PoseStamped {
	return spatialmath.PoseStamped{Frame: "odom", Pose: spatialmath.NewPose2D(x, y, yaw)}
}

func goalAt(x, y float64) spatialmath.PoseStamped {
	return spatialmath.PoseStamped{Frame: "map", Pose: spatialmath.NewPose2D(x, y, 0)}
}

func TestReached(t *testing.T) {
	goal := spatialmath.NewPose2D(3, 4, 0)
	test.That(t, reached(spatialmath.NewPose2D(0, 0, 0), goal, 5), test.ShouldBeFalse)
	test.That(t, reached(spatialmath.NewPose2D(0, 0, 1), goal, 5+1e-9), test.ShouldBeTrue)
	test.That(t, reached(goal, goal, 0), test.ShouldBeFalse)
}

func TestGoalExactlyAtToleranceIsNotReached(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(1, 0))

	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().Stats.Cycles, test.ShouldBeGreaterThanOrEqualTo, 3)
	})
	test.That(t, p.Status().State, test.ShouldEqual, StateTracking)
	p.Stop()
	test.That(t, p.Status().State, test.ShouldEqual, StateCancelled)
}

func TestGoalInsideToleranceIsReached(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(1-1e-9, 0))

	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().State, test.ShouldEqual, StateReached)
	})
	cmds := p.cmds.all()
	test.That(t, len(cmds), test.ShouldEqual, 2)
	test.That(t, cmds[len(cmds)-1], test.ShouldResemble, spatialmath.Velocity{})
	test.That(t, p.logs.FilterMessage("goal reached").Len(), test.ShouldEqual, 1)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Running(), test.ShouldBeFalse)
		test.That(tb, p.Executions(), test.ShouldBeEmpty)
	})

	status := p.Status()
	test.That(t, status.LocalizedGoal.Frame, test.ShouldEqual, "map")
	test.That(t, status.Stats.Published, test.ShouldEqual, 2)
	test.That(t, status.Stats.Evaluations, test.ShouldEqual, 35)
}

func TestUnlocalizableGoalRetries(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(spatialmath.PoseStamped{Frame: "elsewhere", Pose: spatialmath.NewPose2D(1, 0, 0)})

	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.logs.FilterMessage("cannot localize goal, retrying").Len(), test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	test.That(t, p.Status().State, test.ShouldEqual, StateAwaitingLocalizableGoal)
	_, ok := p.runtime.localizedGoal()
	test.That(t, ok, test.ShouldBeFalse)

	p.Stop()
	test.That(t, p.Status().State, test.ShouldEqual, StateCancelled)
	test.That(t, p.cmds.all(), test.ShouldBeEmpty)
}

func TestPoseFailureSkipsCycle(t *testing.T) {
	fs := referenceframe.NewEmptyFrameSystem()
	test.That(t, fs.AddFrame("map", referenceframe.World, spatialmath.Pose2D{}), test.ShouldBeNil)
	p := newTestPlanner(t, fastConfig(), fs)
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(5, 0))

	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().Stats.PoseFailures, test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	test.That(t, p.logs.FilterMessage("could not get robot pose").Len(), test.ShouldBeGreaterThanOrEqualTo, 2)
	test.That(t, p.Status().State, test.ShouldEqual, StateTracking)
	test.That(t, p.cmds.all(), test.ShouldBeEmpty)
}

func TestLethalCostmapProducesNoPath(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	info := costmap.Info{Resolution: 0.5, Width: 40, Height: 40, OriginX: -10, OriginY: -10}
	data := make([]int8, info.Width*info.Height)
	for i := range data {
		data[i] = costmap.Lethal
	}
	p.bus.Publish("/map", ros.NewOccupancyGrid(ros.Header{FrameID: "map"}, info, data))
	test.That(t, p.costmap.Ready(), test.ShouldBeTrue)

	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(5, 0))
	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().Stats.SearchFailures, test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	test.That(t, p.logs.FilterMessage("failed to produce a valid path").Len(), test.ShouldBeGreaterThanOrEqualTo, 2)
	test.That(t, p.cmds.all(), test.ShouldBeEmpty)
}

func TestPathPublished(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	var (
		mu    sync.Mutex
		paths []ros.Path
	)
	ros.Subscribe(p.bus, "trajectories", func(path ros.Path) {
		mu.Lock()
		defer mu.Unlock()
		paths = append(paths, path)
	})
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(5, 0))

	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		mu.Lock()
		defer mu.Unlock()
		test.That(tb, len(paths), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	p.Stop()
	mu.Lock()
	defer mu.Unlock()
	test.That(t, paths[0].Header.FrameID, test.ShouldEqual, "map")
	// five kept trajectories of ten points each
	test.That(t, len(paths[0].Poses), test.ShouldEqual, 50)
}

func TestCancellationLiveness(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	// the first goal is ahead and the second behind, so forward commands come from the first loop
	var (
		phase         atomic.Int32
		duringReplace atomic.Int32
		afterReplace  atomic.Int32
	)
	ros.Subscribe(p.bus, "/cmd_vel", func(tw ros.Twist) {
		if tw.Linear.X <= 0 {
			return
		}
		switch phase.Load() {
		case 1:
			duringReplace.Inc()
		case 2:
			afterReplace.Inc()
		}
	})
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(50, 0))
	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(p.cmds.all()), test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	first := p.Status().ExecutionID

	phase.Store(1)
	p.bus.Publish("/move_base_simple/goal", ros.NewPoseStamped(goalAt(-50, 0)))
	phase.Store(2)

	test.That(t, int(duringReplace.Load()), test.ShouldBeLessThanOrEqualTo, 1)
	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().Stats.Published, test.ShouldBeGreaterThanOrEqualTo, 3)
	})
	test.That(t, int(afterReplace.Load()), test.ShouldEqual, 0)
	last := p.cmds.all()[len(p.cmds.all())-1]
	test.That(t, last.X, test.ShouldBeLessThan, 0.0)
	second := p.Status().ExecutionID
	test.That(t, second, test.ShouldNotEqual, first)
	test.That(t, p.Status().Goal.Pose.X, test.ShouldEqual, -50.0)

	ops := p.Executions()
	test.That(t, len(ops), test.ShouldEqual, 1)
	test.That(t, ops[0].ID, test.ShouldEqual, second)
	test.That(t, ops[0].Method, test.ShouldEqual, "navigate")
}

func TestStopPublishesNothing(t *testing.T) {
	p := newTestPlanner(t, fastConfig(), testFrameSystem(t))
	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(50, 0))
	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(p.cmds.all()), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	p.Stop()
	count := len(p.cmds.all())
	test.That(t, p.cmds.all()[count-1], test.ShouldNotResemble, spatialmath.Velocity{})
	time.Sleep(100 * time.Millisecond)
	test.That(t, len(p.cmds.all()), test.ShouldEqual, count)
	test.That(t, p.Running(), test.ShouldBeFalse)
}

func TestOverrunIsLogged(t *testing.T) {
	registry.RegisterScoreFunction("test-slow", registry.ScoreFunction{
		Constructor: func(ctx context.Context, conf interface{}, logger logging.Logger) (interface{}, error) {
			return &inject.ScoreFunction{
				NameValue: "test-slow",
				ScoreFunc: func(traj *trajectory.Trajectory) float64 {
					time.Sleep(time.Millisecond)
					return 0
				},
			}, nil
		},
	})
	defer registry.DeregisterScoreFunction("test-slow")

	conf := fastConfig()
	conf.ScoreFunctions = []string{"test-slow"}
	// 35 candidates each scored for at least a millisecond
	conf.ControlPeriodMs = 5
	conf.TransformTimeoutSec = 1e-6
	fs := testFrameSystem(t)
	slow := &inject.Transformer{Transformer: fs}
	slow.LookupAndApplyFunc = func(ctx context.Context, pose spatialmath.PoseStamped, target string) (spatialmath.PoseStamped, error) {
		time.Sleep(time.Millisecond)
		return fs.LookupAndApply(ctx, pose, target)
	}
	p := newTestPlanner(t, conf, slow)
	test.That(t, p.ScoreFunctionNames(), test.ShouldResemble, []string{"test-slow"})

	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(50, 0))
	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().Stats.Overruns, test.ShouldBeGreaterThanOrEqualTo, 1)
	})
	p.Stop()
	test.That(t, p.logs.FilterMessage("control loop overran its period").Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
	test.That(t, p.logs.FilterMessage("transform lookup exceeded timeout").Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
	test.That(t, len(p.cmds.all()), test.ShouldBeGreaterThanOrEqualTo, 1)
}

func TestSleepIsNotCountedAsOverrun(t *testing.T) {
	conf := fastConfig()
	conf.ControlFrequencyHz = 10
	conf.GoalRetryHz = 10
	conf.ControlPeriodMs = 50
	conf.ScoreFunctions = []string{}
	p := newTestPlanner(t, conf, testFrameSystem(t))

	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(50, 0))
	testutils.WaitForAssertionWithSleep(t, 20*time.Millisecond, 100, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().Stats.Cycles, test.ShouldBeGreaterThanOrEqualTo, 4)
	})
	p.Stop()
	stats := p.Status().Stats
	test.That(t, stats.Overruns, test.ShouldEqual, 0)
	test.That(t, stats.LastCycle, test.ShouldBeLessThan, 50*time.Millisecond)
	test.That(t, p.logs.FilterMessage("control loop overran its period").Len(), test.ShouldEqual, 0)
}

func TestScoreFunctionLoadFailuresAreSkipped(t *testing.T) {
	conf := fastConfig()
	conf.ScoreFunctions = []string{"does-not-exist", "goal-distance"}
	p := newTestPlanner(t, conf, testFrameSystem(t))
	test.That(t, p.ScoreFunctionNames(), test.ShouldResemble, []string{"goal-distance"})
	test.That(t, p.logs.FilterMessage("could not load score function").Len(), test.ShouldEqual, 1)
}

func TestNoScoreFunctions(t *testing.T) {
	conf := fastConfig()
	conf.ScoreFunctions = []string{}
	p := newTestPlanner(t, conf, testFrameSystem(t))
	test.That(t, p.ScoreFunctionNames(), test.ShouldBeEmpty)
	test.That(t, p.logs.FilterMessage("no score functions loaded, every trajectory will cost 0").Len(), test.ShouldEqual, 1)

	p.HandleOdometry(odomAt(0, 0, 0), spatialmath.Velocity{})
	p.HandleGoal(goalAt(5, 0))
	testutils.WaitForAssertionWithSleep(t, 10*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(p.cmds.all()), test.ShouldBeGreaterThanOrEqualTo, 2)
	})
	p.Stop()
	test.That(t, p.Status().Stats.LastCost, test.ShouldEqual, 0.0)
}

func TestNewRequiresCollaborators(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := New(context.Background(), Config{}, Dependencies{Transformer: testFrameSystem(t)}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(context.Background(), Config{}, Dependencies{Bus: ros.NewBus(logger)}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = New(context.Background(), Config{ControlFrequencyHz: -1}, Dependencies{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDriveToGoal(t *testing.T) {
	conf := fastConfig()
	conf.XYGoalTolerance = 0.5
	fs := testFrameSystem(t)
	p := newTestPlanner(t, conf, fs)

	// an obstacle beside the straight line to the goal
	static := costmap.Config{
		Info:            costmap.Info{Resolution: 0.1, Width: 140, Height: 100, OriginX: -3, OriginY: -5},
		Obstacles:       []costmap.Obstacle{{X: 2.5, Y: 2, Radius: 0.5}},
		InflationRadius: 0.5,
	}
	test.That(t, static.Validate(), test.ShouldBeNil)
	p.bus.Publish("/map", ros.NewOccupancyGrid(ros.Header{FrameID: "map"}, static.Info, static.Rasterize()))
	test.That(t, p.costmap.Ready(), test.ShouldBeTrue)

	// stats are recorded before each command goes out, so every command can be matched to its cost
	var vetoed, published atomic.Int32
	ros.Subscribe(p.bus, "/cmd_vel", func(ros.Twist) {
		published.Inc()
		if p.Status().Stats.LastCost < 0 {
			vetoed.Inc()
		}
	})

	base, err := fake.NewBase(fake.Config{RateHz: 100}, p.bus, nil, logging.NewTestLogger(t), true)
	test.That(t, err, test.ShouldBeNil)
	defer func() { test.That(t, base.Close(context.Background()), test.ShouldBeNil) }()

	p.bus.Publish("/move_base_simple/goal", ros.NewPoseStamped(goalAt(5, 0)))
	testutils.WaitForAssertionWithSleep(t, 50*time.Millisecond, 200, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, p.Status().State, test.ShouldEqual, StateReached)
	})

	pose := base.Pose().Pose
	step := conf.VelocityLimits.MaxVelX / conf.ControlFrequencyHz
	test.That(t, math.Hypot(5-pose.X, pose.Y), test.ShouldBeLessThan, conf.XYGoalTolerance+step)
	test.That(t, int(published.Load()), test.ShouldBeGreaterThan, 1)
	test.That(t, int(vetoed.Load()), test.ShouldEqual, 0)
	test.That(t, p.Status().Stats.SearchFailures, test.ShouldEqual, 0)

	cmds := p.cmds.all()
	test.That(t, cmds[len(cmds)-1], test.ShouldResemble, spatialmath.Velocity{})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		moving, err := base.IsMoving(context.Background())
		test.That(tb, err, test.ShouldBeNil)
		test.That(tb, moving, test.ShouldBeFalse)
	})
}
