// Package config reads the JSON file that wires a planner together with its collaborators.
package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/xdwa/components/base/fake"
	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/referenceframe"
	"go.viam.com/xdwa/services/navigation"
)

// Config describes a full planner setup.
type Config struct {
	ConfigFilePath string `json:"-"`

	Planner navigation.Config `json:"planner"`
	// Frames are the static frames of the frame system. Without any, map is the world frame
	// and odom coincides with it.
	Frames []referenceframe.FrameConfig `json:"frames,omitempty"`
	// Costmap is an optional static map; without one the planner waits for the costmap topic.
	Costmap  *costmap.Config `json:"costmap,omitempty"`
	Base     fake.Config     `json:"base"`
	LogLevel logging.Level   `json:"log_level"`
}

// DefaultFrames place map at the world origin with odom on top of it.
func DefaultFrames() []referenceframe.FrameConfig {
	return []referenceframe.FrameConfig{
		{Name: "map", Parent: referenceframe.World},
		{Name: "odom", Parent: "map"},
	}
}

// Ensure fills defaults and validates every section, returning all problems at once.
func (c *Config) Ensure(logger logging.Logger) error {
	c.Planner.SetDefaults()
	c.Base.SetDefaults()
	if len(c.Frames) == 0 {
		c.Frames = DefaultFrames()
	}

	var errs error
	errs = multierr.Append(errs, c.Planner.Validate("planner"))
	errs = multierr.Append(errs, c.Base.Validate("base"))
	if c.Costmap != nil {
		if err := c.Costmap.Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "costmap"))
		}
	}
	if _, err := referenceframe.NewFrameSystemFromConfig(c.Frames); err != nil {
		errs = multierr.Append(errs, errors.Wrap(err, "frames"))
	}
	if c.Base.OdomFrame != "" && !frameListed(c.Frames, c.Base.OdomFrame) {
		logger.Warnw("base odom frame is not in the frame system, robot pose lookups will fail",
			"frame", c.Base.OdomFrame)
	}
	return errs
}

func frameListed(frames []referenceframe.FrameConfig, name string) bool {
	if name == referenceframe.World {
		return true
	}
	for _, f := range frames {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FrameSystem builds the static frame system.
func (c *Config) FrameSystem() (*referenceframe.FrameSystem, error) {
	frames := c.Frames
	if len(frames) == 0 {
		frames = DefaultFrames()
	}
	return referenceframe.NewFrameSystemFromConfig(frames)
}

// BuildCostmap returns the static costmap, or an empty one when none is configured.
func (c *Config) BuildCostmap() (*costmap.Costmap, error) {
	if c.Costmap == nil {
		return costmap.New(), nil
	}
	return costmap.NewFromConfig(*c.Costmap)
}
