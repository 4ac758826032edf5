// Package navigation drives a base toward a goal pose. A Planner listens for goals and odometry
// on a bus and, for each goal, runs one control loop that searches trajectories and publishes
// velocity commands until the goal is reached or superseded.
package navigation

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan"
	"go.viam.com/xdwa/motionplan/scoring"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/operation"
	"go.viam.com/xdwa/referenceframe"
	"go.viam.com/xdwa/ros"
	"go.viam.com/xdwa/spatialmath"
)

// Dependencies are the collaborators a Planner talks to.
type Dependencies struct {
	Bus         *ros.Bus
	Transformer referenceframe.Transformer
	// Costmap is fed by the costmap topic. A new empty one is made when nil.
	Costmap *costmap.Costmap
	// Clock defaults to the real clock.
	Clock clock.Clock
}

// Planner is the goal supervisor. At most one control loop runs at a time; a new goal replaces
// the running loop only after it has returned.
type Planner struct {
	conf        Config
	bus         *ros.Bus
	transformer referenceframe.Transformer
	costmap     *costmap.Costmap
	clk         clock.Clock
	logger      logging.Logger

	sampler  *trajectory.Sampler
	scorer   *scoring.Scorer
	searcher *motionplan.Searcher

	runtime    runtimeState
	opMgr      operation.SingleOperationManager
	executions *operation.Manager

	statusMu    sync.Mutex
	executionID uuid.UUID
	state       State
	stats       CycleStats

	cancelCtx    context.Context
	cancelFunc   context.CancelFunc
	unsubscribes []func()
	closed       atomic.Bool
}

// New builds a planner, loads its score functions and subscribes it to the bus. Score functions
// that fail to load are logged and left out.
func New(ctx context.Context, conf Config, deps Dependencies, logger logging.Logger) (*Planner, error) {
	conf.SetDefaults()
	if err := conf.Validate("planner"); err != nil {
		return nil, err
	}
	if deps.Bus == nil {
		return nil, errors.New("planner needs a bus")
	}
	if deps.Transformer == nil {
		return nil, errors.New("planner needs a transformer")
	}
	if deps.Costmap == nil {
		deps.Costmap = costmap.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}

	sampler, err := trajectory.NewSampler(*conf.VelocityLimits, conf.ControlPeriod())
	if err != nil {
		return nil, err
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	p := &Planner{
		conf:        conf,
		bus:         deps.Bus,
		transformer: deps.Transformer,
		costmap:     deps.Costmap,
		clk:         deps.Clock,
		logger:      logger,
		sampler:     sampler,
		executions:  operation.NewManager(logger.Sublogger("operations")),
		cancelCtx:   cancelCtx,
		cancelFunc:  cancelFunc,
	}

	scoringCtx := scoring.Context{
		Transformer: deps.Transformer,
		GlobalFrame: conf.GlobalFrame,
		Footprint:   conf.Footprint,
		Goal:        p.runtime.localizedGoal,
		Pose:        p.runtime.currentPose,
		Costmap:     deps.Costmap,
		Logger:      logger,
	}
	fns, err := scoring.Load(ctx, conf.ScoreFunctions, conf.ScoreFunctionAttributes, scoringCtx, logger)
	if err != nil {
		logger.Warnw("continuing without some score functions", "error", err)
	}
	if len(fns) == 0 {
		logger.Warn("no score functions loaded, every trajectory will cost 0")
	}
	p.scorer = scoring.NewScorer(fns...)

	p.searcher, err = motionplan.NewSearcher(conf.SearchOptions, sampler, p.scorer, logger.Sublogger("search"))
	if err != nil {
		cancelFunc()
		return nil, err
	}

	p.unsubscribes = append(p.unsubscribes,
		ros.Subscribe(p.bus, conf.GoalTopic, func(msg ros.PoseStamped) {
			p.HandleGoal(msg.Spatial())
		}),
		ros.Subscribe(p.bus, conf.OdomTopic, func(msg ros.Odometry) {
			p.HandleOdometry(msg.PoseStamped(), msg.Velocity())
		}),
		ros.Subscribe(p.bus, conf.CostmapTopic, p.HandleCostmap),
	)
	logger.Infow("planner ready",
		"score_functions", p.scorer.Names(),
		"samples", sampler.NumSamples(),
		"control_frequency_hz", conf.ControlFrequencyHz)
	return p, nil
}

// Config returns the configuration the planner was built with, defaults filled.
func (p *Planner) Config() Config {
	return p.conf
}

// ScoreFunctionNames lists the loaded score functions in order.
func (p *Planner) ScoreFunctionNames() []string {
	return p.scorer.Names()
}

// HandleGoal stores goal, stops the running control loop, waits for it to return, and starts a
// new loop toward goal. It blocks for up to one control period plus one transform lookup.
func (p *Planner) HandleGoal(goal spatialmath.PoseStamped) {
	if p.closed.Load() {
		return
	}
	if !goal.Pose.IsFinite() {
		p.logger.Warnw("ignoring goal that is not finite", "goal", goal.Pose.String())
		return
	}
	p.logger.Infow("new goal", "frame", goal.Frame, "pose", goal.Pose.String())

	p.opMgr.Go(p.cancelCtx, func(ctx context.Context) {
		ctx, done := p.executions.Create(ctx, "navigate", goal)
		defer done()
		id := operation.Get(ctx).ID

		p.runtime.setGoal(goal)
		p.resetStatus(id)
		newControlLoop(p, id, goal).run(ctx)
	})
}

// HandleOdometry records the latest odometry. It does not trigger planning.
func (p *Planner) HandleOdometry(pose spatialmath.PoseStamped, vel spatialmath.Velocity) {
	p.runtime.setOdometry(odomSnapshot{pose: pose, vel: vel})
}

// HandleCostmap replaces the costmap contents.
func (p *Planner) HandleCostmap(grid ros.OccupancyGrid) {
	if err := p.costmap.Update(grid.CostmapInfo(), grid.Data); err != nil {
		p.logger.Warnw("ignoring costmap", "error", err)
	}
}

// Status returns a snapshot of the current or most recent execution.
func (p *Planner) Status() Status {
	goal, localGoal := p.runtime.goals()
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return Status{
		ExecutionID:   p.executionID,
		State:         p.state,
		Goal:          goal,
		LocalizedGoal: localGoal,
		Stats:         p.stats,
	}
}

// Executions returns the goal executions that are running.
func (p *Planner) Executions() []*operation.Operation {
	return p.executions.All()
}

// Running reports whether a control loop is running.
func (p *Planner) Running() bool {
	return p.opMgr.OpRunning()
}

// Stop cancels the running control loop and waits for it to return. No stop command is
// published.
func (p *Planner) Stop() {
	p.opMgr.CancelAndWait()
}

// Close stops the control loop and unsubscribes from the bus.
func (p *Planner) Close(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, unsubscribe := range p.unsubscribes {
		unsubscribe()
	}
	p.cancelFunc()
	p.Stop()
	return nil
}

func (p *Planner) resetStatus(id uuid.UUID) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.executionID = id
	p.state = StateIdle
	p.stats = CycleStats{}
}

func (p *Planner) setState(state State) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.state = state
}

func (p *Planner) updateStats(update func(stats *CycleStats)) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	update(&p.stats)
}
