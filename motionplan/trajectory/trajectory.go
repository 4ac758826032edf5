// Package trajectory defines simulated candidate paths and the sampler and integrator that
// produce them.
package trajectory

import (
	"go.viam.com/xdwa/spatialmath"
)

// Point is a single simulated sample: where the robot is and the velocity it is driving at.
type Point struct {
	Pose     spatialmath.Pose2D
	Velocity spatialmath.Velocity
}

// Trajectory is a simulated candidate path and its accumulated cost.
//
// A negative Cost marks the trajectory as rejected. A trajectory is owned by the search round
// that created it; once handed to selection it must be treated as read-only.
type Trajectory struct {
	points []Point

	Cost            float64
	NumPointsScored int
}

// New returns an empty trajectory with room for capacity points.
func New(capacity int) *Trajectory {
	return &Trajectory{points: make([]Point, 0, capacity)}
}

// NumPoints is the number of simulated samples.
func (t *Trajectory) NumPoints() int {
	return len(t.points)
}

// Point returns the i-th sample.
func (t *Trajectory) Point(i int) Point {
	return t.points[i]
}

// Pose returns the pose of the i-th sample.
func (t *Trajectory) Pose(i int) spatialmath.Pose2D {
	return t.points[i].Pose
}

// Velocity returns the velocity of the i-th sample.
func (t *Trajectory) Velocity(i int) spatialmath.Velocity {
	return t.points[i].Velocity
}

// Last returns the final sample. It panics on an empty trajectory.
func (t *Trajectory) Last() Point {
	return t.points[len(t.points)-1]
}

// LastVelocity returns the velocity of the final sample.
func (t *Trajectory) LastVelocity() spatialmath.Velocity {
	return t.Last().Velocity
}

// Poses returns a copy of every sampled pose in order.
func (t *Trajectory) Poses() []spatialmath.Pose2D {
	poses := make([]spatialmath.Pose2D, len(t.points))
	for i, p := range t.points {
		poses[i] = p.Pose
	}
	return poses
}

// Points returns the samples. The slice must not be modified.
func (t *Trajectory) Points() []Point {
	return t.points[:len(t.points):len(t.points)]
}

// Append adds a sample at the end.
func (t *Trajectory) Append(p Point) {
	t.points = append(t.points, p)
}

// Extend returns an unscored child that starts with all of t's samples. Appending to the child
// never changes t or any sibling extended from t.
func (t *Trajectory) Extend() *Trajectory {
	return &Trajectory{points: t.points[:len(t.points):len(t.points)]}
}

// Valid reports whether the trajectory survived scoring.
func (t *Trajectory) Valid() bool {
	return t.Cost >= 0
}
