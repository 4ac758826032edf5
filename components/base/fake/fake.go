// Package fake implements a simulated base that follows velocity commands from the bus and
// publishes odometry.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"go.viam.com/xdwa/components/base"
	"go.viam.com/xdwa/control"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/ros"
	"go.viam.com/xdwa/spatialmath"
)

const (
	defaultRateHz      = 20.0
	defaultOdomFrame   = "odom"
	defaultBaseFrame   = "base_link"
	defaultOdomTopic   = "/odom"
	defaultCmdVelTopic = "/cmd_vel"
)

// Config configures the simulated base.
type Config struct {
	RateHz      float64            `json:"rate_hz"`
	OdomFrame   string             `json:"odom_frame"`
	BaseFrame   string             `json:"base_frame"`
	OdomTopic   string             `json:"odom_topic"`
	CmdVelTopic string             `json:"cmd_vel_topic"`
	Start       spatialmath.Pose2D `json:"start"`

	// Acceleration limits; zero follows commands instantly.
	AccLimX     float64 `json:"acc_lim_x"`
	AccLimY     float64 `json:"acc_lim_y"`
	AccLimTheta float64 `json:"acc_lim_theta"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.RateHz == 0 {
		c.RateHz = defaultRateHz
	}
	if c.OdomFrame == "" {
		c.OdomFrame = defaultOdomFrame
	}
	if c.BaseFrame == "" {
		c.BaseFrame = defaultBaseFrame
	}
	if c.OdomTopic == "" {
		c.OdomTopic = defaultOdomTopic
	}
	if c.CmdVelTopic == "" {
		c.CmdVelTopic = defaultCmdVelTopic
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.RateHz <= 0 || c.RateHz > control.MaxFrequency {
		return errors.Errorf("%s: rate_hz must be in (0, %v]", path, control.MaxFrequency)
	}
	if c.AccLimX < 0 || c.AccLimY < 0 || c.AccLimTheta < 0 {
		return errors.Errorf("%s: acceleration limits cannot be negative", path)
	}
	if !c.Start.IsFinite() {
		return errors.Errorf("%s: start pose is not finite", path)
	}
	return nil
}

// Base is a simulated base. Its pose is the integral of its velocity, reported in the odom frame.
type Base struct {
	conf   Config
	bus    *ros.Bus
	clk    clock.Clock
	logger logging.Logger

	mu       sync.Mutex
	pose     spatialmath.Pose2D
	target   spatialmath.Velocity
	limiters [3]control.AccelerationLimiter
	seq      uint32

	commands    atomic.Uint64
	unsubscribe func()
	cancel      context.CancelFunc
	workers     sync.WaitGroup
	closed      atomic.Bool
}

var _ base.Base = (*Base)(nil)

// NewBase returns a simulated base wired to bus. With start set it also runs its own integration
// loop on clk; otherwise the caller drives it through Step.
func NewBase(conf Config, bus *ros.Bus, clk clock.Clock, logger logging.Logger, start bool) (*Base, error) {
	conf.SetDefaults()
	if err := conf.Validate("base"); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	b := &Base{
		conf:   conf,
		bus:    bus,
		clk:    clk,
		logger: logger,
		pose:   conf.Start,
		limiters: [3]control.AccelerationLimiter{
			{MaxAcc: conf.AccLimX},
			{MaxAcc: conf.AccLimY},
			{MaxAcc: conf.AccLimTheta},
		},
	}
	b.unsubscribe = ros.Subscribe(bus, conf.CmdVelTopic, func(tw ros.Twist) {
		b.commands.Inc()
		b.setTarget(tw.Velocity())
	})
	b.publishOdometry()

	if start {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.workers.Add(1)
		utils.PanicCapturingGo(func() {
			defer b.workers.Done()
			b.run(ctx)
		})
	}
	return b, nil
}

func (b *Base) run(ctx context.Context) {
	period := time.Duration(float64(time.Second) / b.conf.RateHz)
	ticker := b.clk.Ticker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Step(period)
		}
	}
}

func (b *Base) setTarget(v spatialmath.Velocity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = v
}

// Step advances the simulation by dt and publishes odometry.
func (b *Base) Step(dt time.Duration) {
	b.mu.Lock()
	vel := spatialmath.Velocity{
		X:     b.limiters[0].Next(b.target.X, dt),
		Y:     b.limiters[1].Next(b.target.Y, dt),
		Theta: b.limiters[2].Next(b.target.Theta, dt),
	}
	if dt > 0 && !vel.IsZero() {
		traj, err := trajectory.Generate(vel, b.pose.X, b.pose.Y, b.pose.Yaw, dt.Seconds(), 1)
		if err != nil {
			b.logger.Warnw("cannot integrate velocity", "velocity", vel.String(), "error", err)
		} else {
			b.pose = traj.Last().Pose
		}
	}
	b.mu.Unlock()
	b.publishOdometry()
}

func (b *Base) publishOdometry() {
	b.mu.Lock()
	b.seq++
	odom := ros.Odometry{
		Header: ros.Header{
			Seq:     b.seq,
			Stamp:   ros.NewTime(b.clk.Now()),
			FrameID: b.conf.OdomFrame,
		},
		ChildFrameID: b.conf.BaseFrame,
		Pose:         ros.PoseWithCovariance{Pose: ros.NewPose(b.pose)},
		Twist:        ros.TwistWithCovariance{Twist: ros.NewTwist(b.velocityInLock())},
	}
	b.mu.Unlock()
	b.bus.Publish(b.conf.OdomTopic, odom)
}

func (b *Base) velocityInLock() spatialmath.Velocity {
	return spatialmath.Velocity{
		X:     b.limiters[0].Current(),
		Y:     b.limiters[1].Current(),
		Theta: b.limiters[2].Current(),
	}
}

// Pose is the current pose in the odom frame.
func (b *Base) Pose() spatialmath.PoseStamped {
	b.mu.Lock()
	defer b.mu.Unlock()
	return spatialmath.PoseStamped{Frame: b.conf.OdomFrame, Stamp: b.clk.Now(), Pose: b.pose}
}

// Velocity is the velocity the base is currently moving at.
func (b *Base) Velocity() spatialmath.Velocity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.velocityInLock()
}

// CommandCount is the number of velocity commands received from the bus.
func (b *Base) CommandCount() uint64 {
	return b.commands.Load()
}

// SetVelocity sets the commanded velocity directly.
func (b *Base) SetVelocity(ctx context.Context, vel spatialmath.Velocity) error {
	if !vel.IsFinite() {
		return errors.New("velocity is not finite")
	}
	b.setTarget(vel)
	return nil
}

// Stop commands zero velocity.
func (b *Base) Stop(ctx context.Context) error {
	b.setTarget(spatialmath.Velocity{})
	return nil
}

// IsMoving reports whether the base has a non-zero velocity.
func (b *Base) IsMoving(ctx context.Context) (bool, error) {
	return !b.Velocity().IsZero(), nil
}

// Close stops the simulation and unsubscribes from the bus.
func (b *Base) Close(ctx context.Context) error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.unsubscribe()
	if b.cancel != nil {
		b.cancel()
	}
	b.workers.Wait()
	return nil
}
