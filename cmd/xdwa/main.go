// Package main is the xdwa command line tool.
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"go.viam.com/xdwa/logging"
	// register the built in score functions.
	_ "go.viam.com/xdwa/motionplan/scoring/register"
)

const (
	// Flags.
	flagConfig    = "config"
	flagDebug     = "debug"
	flagGoalX     = "goal-x"
	flagGoalY     = "goal-y"
	flagGoalYaw   = "goal-yaw"
	flagGoalFrame = "goal-frame"
	flagTimeout   = "timeout"
	flagStartX    = "start-x"
	flagStartY    = "start-y"
	flagStartYaw  = "start-yaw"
	flagStartVX   = "start-vx"
	flagOut       = "out"
	flagBag       = "bag"
)

func goalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{Name: flagGoalX, Usage: "goal x in metres", Required: true},
		&cli.Float64Flag{Name: flagGoalY, Usage: "goal y in metres", Required: true},
		&cli.Float64Flag{Name: flagGoalYaw, Usage: "goal heading in radians"},
		&cli.StringFlag{Name: flagGoalFrame, Usage: "frame the goal is given in", Value: "map"},
	}
}

func newApp(logger logging.Logger) *cli.App {
	return &cli.App{
		Name:  "xdwa",
		Usage: "plan and follow short horizon trajectories for a mobile base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "drive the simulated base to a goal",
				Flags: append(goalFlags(),
					&cli.DurationFlag{Name: flagTimeout, Usage: "give up after this long", Value: defaultRunTimeout},
				),
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "plot",
				Usage: "run one search from a start pose and draw the kept trajectories",
				Flags: append(goalFlags(),
					&cli.Float64Flag{Name: flagStartX, Usage: "start x in metres"},
					&cli.Float64Flag{Name: flagStartY, Usage: "start y in metres"},
					&cli.Float64Flag{Name: flagStartYaw, Usage: "start heading in radians"},
					&cli.Float64Flag{Name: flagStartVX, Usage: "start forward velocity in m/s"},
					&cli.StringFlag{Name: flagOut, Usage: "write the image to `FILE`", Value: "search.png"},
				),
				Action: func(c *cli.Context) error {
					return plotAction(c, logger)
				},
			},
			{
				Name:  "plugins",
				Usage: "list the registered score functions",
				Action: func(c *cli.Context) error {
					return pluginsAction(c)
				},
			},
			{
				Name:      "replay",
				Usage:     "feed recorded goals, odometry and maps from a bag to the planner",
				ArgsUsage: "",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagBag, Usage: "read messages from bag `FILE`", Required: true},
				},
				Action: func(c *cli.Context) error {
					return replayAction(c, logger)
				},
			},
		},
	}
}

func main() {
	logger := logging.NewLogger("xdwa")
	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}
