package navigation

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/xdwa/control"
	"go.viam.com/xdwa/motionplan"
	"go.viam.com/xdwa/motionplan/scoring/goaldist"
	"go.viam.com/xdwa/motionplan/scoring/obstacle"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/registry"
	"go.viam.com/xdwa/spatialmath"
)

const (
	defaultControlFrequencyHz  = 1.0
	defaultGlobalFrame         = "map"
	defaultBaseFrame           = "base_link"
	defaultXYGoalTolerance     = 1.0
	defaultYawGoalTolerance    = 1.0
	defaultTransformTimeoutSec = 1.0
	defaultGoalRetryHz         = 1.0
	defaultOdomTopic           = "/odom"
	defaultGoalTopic           = "/move_base_simple/goal"
	defaultCmdVelTopic         = "/cmd_vel"
	defaultCostmapTopic        = "/map"
	defaultPathTopic           = "trajectories"
)

// DefaultScoreFunctions are loaded when the config does not list any.
var DefaultScoreFunctions = []string{goaldist.Name, obstacle.Name}

// Config describes how to configure the planner. It is fixed once the planner is built.
type Config struct {
	ControlFrequencyHz float64 `json:"control_frequency_hz"`
	// ControlPeriodMs overrides the overrun deadline, which is otherwise one control period.
	ControlPeriodMs float64 `json:"control_period_ms,omitempty"`

	GlobalFrame string `json:"global_frame"`
	BaseFrame   string `json:"base_frame"`

	XYGoalTolerance float64 `json:"xy_goal_tolerance"`
	// YawGoalTolerance is accepted but goal arrival only considers position.
	YawGoalTolerance    float64 `json:"yaw_goal_tolerance"`
	TransformTimeoutSec float64 `json:"transform_timeout_sec"`
	GoalRetryHz         float64 `json:"goal_retry_hz"`

	OdomTopic    string `json:"odom_topic"`
	GoalTopic    string `json:"goal_topic"`
	CmdVelTopic  string `json:"cmd_vel_topic"`
	CostmapTopic string `json:"costmap_topic"`
	PathTopic    string `json:"path_topic"`

	motionplan.SearchOptions

	ScoreFunctions          []string                         `json:"score_functions"`
	ScoreFunctionAttributes map[string]registry.AttributeMap `json:"score_function_attributes,omitempty"`

	Footprint      spatialmath.Footprint `json:"footprint,omitempty"`
	VelocityLimits *trajectory.Limits    `json:"velocity_limits,omitempty"`
}

// SetDefaults fills every unset field. A nil ScoreFunctions list gets the defaults; an empty one
// stays empty.
func (conf *Config) SetDefaults() {
	if conf.ControlFrequencyHz == 0 {
		conf.ControlFrequencyHz = defaultControlFrequencyHz
	}
	if conf.GlobalFrame == "" {
		conf.GlobalFrame = defaultGlobalFrame
	}
	if conf.BaseFrame == "" {
		conf.BaseFrame = defaultBaseFrame
	}
	if conf.XYGoalTolerance == 0 {
		conf.XYGoalTolerance = defaultXYGoalTolerance
	}
	if conf.YawGoalTolerance == 0 {
		conf.YawGoalTolerance = defaultYawGoalTolerance
	}
	if conf.TransformTimeoutSec == 0 {
		conf.TransformTimeoutSec = defaultTransformTimeoutSec
	}
	if conf.GoalRetryHz == 0 {
		conf.GoalRetryHz = defaultGoalRetryHz
	}
	if conf.OdomTopic == "" {
		conf.OdomTopic = defaultOdomTopic
	}
	if conf.GoalTopic == "" {
		conf.GoalTopic = defaultGoalTopic
	}
	if conf.CmdVelTopic == "" {
		conf.CmdVelTopic = defaultCmdVelTopic
	}
	if conf.CostmapTopic == "" {
		conf.CostmapTopic = defaultCostmapTopic
	}
	if conf.PathTopic == "" {
		conf.PathTopic = defaultPathTopic
	}

	defaults := motionplan.DefaultSearchOptions()
	if conf.Depth == 0 {
		conf.Depth = defaults.Depth
	}
	if conf.NumBest == 0 {
		conf.NumBest = defaults.NumBest
	}
	if conf.NumSteps == 0 {
		conf.NumSteps = defaults.NumSteps
	}
	if conf.SimTime == 0 {
		conf.SimTime = defaults.SimTime
	}

	if conf.ScoreFunctions == nil {
		conf.ScoreFunctions = append([]string(nil), DefaultScoreFunctions...)
	}
	if conf.Footprint == nil {
		conf.Footprint = spatialmath.DefaultFootprint()
	}
	if conf.VelocityLimits == nil {
		limits := trajectory.DefaultLimits()
		conf.VelocityLimits = &limits
	}
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if !(conf.ControlFrequencyHz > 0) || conf.ControlFrequencyHz > control.MaxFrequency {
		return utils.NewConfigValidationError(path,
			errors.Errorf("control_frequency_hz must be in (0, %v], got %v", control.MaxFrequency, conf.ControlFrequencyHz))
	}
	if conf.ControlPeriodMs < 0 {
		return utils.NewConfigValidationError(path, errors.New("control_period_ms cannot be negative"))
	}
	if !(conf.GoalRetryHz > 0) || conf.GoalRetryHz > control.MaxFrequency {
		return utils.NewConfigValidationError(path,
			errors.Errorf("goal_retry_hz must be in (0, %v], got %v", control.MaxFrequency, conf.GoalRetryHz))
	}
	if conf.XYGoalTolerance < 0 || conf.YawGoalTolerance < 0 {
		return utils.NewConfigValidationError(path, errors.New("goal tolerances cannot be negative"))
	}
	if conf.TransformTimeoutSec < 0 {
		return utils.NewConfigValidationError(path, errors.New("transform_timeout_sec cannot be negative"))
	}
	if conf.GlobalFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "global_frame")
	}
	for _, topic := range []struct{ name, value string }{
		{"odom_topic", conf.OdomTopic},
		{"goal_topic", conf.GoalTopic},
		{"cmd_vel_topic", conf.CmdVelTopic},
	} {
		if topic.value == "" {
			return utils.NewConfigValidationFieldRequiredError(path, topic.name)
		}
	}
	if err := conf.SearchOptions.Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if conf.Footprint != nil {
		if err := conf.Footprint.Validate(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if conf.VelocityLimits != nil {
		if err := conf.VelocityLimits.Validate(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// ControlPeriod is the time between control cycles.
func (conf *Config) ControlPeriod() time.Duration {
	return time.Duration(float64(time.Second) / conf.ControlFrequencyHz)
}

// Deadline is the cycle time above which an overrun is reported.
func (conf *Config) Deadline() time.Duration {
	if conf.ControlPeriodMs > 0 {
		return time.Duration(conf.ControlPeriodMs * float64(time.Millisecond))
	}
	return conf.ControlPeriod()
}

// TransformTimeout is the lookup latency above which a warning is logged.
func (conf *Config) TransformTimeout() time.Duration {
	return time.Duration(conf.TransformTimeoutSec * float64(time.Second))
}
