package trajectory

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/xdwa/spatialmath"
)

// ErrNonFinite is returned when simulation inputs are not usable numbers.
var ErrNonFinite = errors.New("trajectory input is not finite")

// Generate forward simulates vel from the start pose for horizon seconds in steps equal
// intervals. The result holds exactly steps points. It is a pure function of its inputs.
func Generate(vel spatialmath.Velocity, startX, startY, startYaw, horizon float64, steps int) (*Trajectory, error) {
	traj := New(steps)
	if err := simulate(traj, vel, spatialmath.Pose2D{X: startX, Y: startY, Yaw: startYaw}, horizon, steps); err != nil {
		return nil, err
	}
	return traj, nil
}

// Extend simulates vel from the final pose of parent and returns a child holding parent's
// points followed by steps new ones. parent is not modified.
func Extend(parent *Trajectory, vel spatialmath.Velocity, horizon float64, steps int) (*Trajectory, error) {
	if parent.NumPoints() == 0 {
		return nil, errors.New("cannot extend an empty trajectory")
	}
	child := parent.Extend()
	if err := simulate(child, vel, parent.Last().Pose, horizon, steps); err != nil {
		return nil, err
	}
	return child, nil
}

func simulate(traj *Trajectory, vel spatialmath.Velocity, start spatialmath.Pose2D, horizon float64, steps int) error {
	if !vel.IsFinite() || !start.IsFinite() || math.IsNaN(horizon) || math.IsInf(horizon, 0) {
		return ErrNonFinite
	}
	if horizon <= 0 || steps <= 0 {
		return errors.Errorf("need a positive horizon and step count, got %v and %d", horizon, steps)
	}

	dt := horizon / float64(steps)
	x, y, yaw := start.X, start.Y, start.Yaw
	for i := 0; i < steps; i++ {
		yaw = spatialmath.NormalizeAngle(yaw + vel.Theta*dt)
		sin, cos := math.Sincos(yaw)
		x += (vel.X*cos - vel.Y*sin) * dt
		y += (vel.X*sin + vel.Y*cos) * dt
		traj.Append(Point{Pose: spatialmath.Pose2D{X: x, Y: y, Yaw: yaw}, Velocity: vel})
	}
	return nil
}
