// Package spatialmath defines the planar poses, velocities and footprints used by the planner.
package spatialmath

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
)

// Pose2D is a position and heading in some frame. Yaw is kept in (-pi, pi].
type Pose2D struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// NewPose2D returns a pose with a normalized heading.
func NewPose2D(x, y, yaw float64) Pose2D {
	return Pose2D{X: x, Y: y, Yaw: NormalizeAngle(yaw)}
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3frad)", p.X, p.Y, p.Yaw)
}

// IsFinite reports whether every component is a finite number.
func (p Pose2D) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Yaw)
}

// Distance is the euclidean distance between the positions of two poses; headings are ignored.
func Distance(a, b Pose2D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Compose applies b in the frame of a, i.e. returns a * b.
func Compose(a, b Pose2D) Pose2D {
	sin, cos := math.Sincos(a.Yaw)
	return NewPose2D(
		a.X+cos*b.X-sin*b.Y,
		a.Y+sin*b.X+cos*b.Y,
		a.Yaw+b.Yaw,
	)
}

// Inverse returns the pose p' such that Compose(p, p') is the identity.
func Inverse(p Pose2D) Pose2D {
	sin, cos := math.Sincos(p.Yaw)
	return NewPose2D(
		-cos*p.X-sin*p.Y,
		sin*p.X-cos*p.Y,
		-p.Yaw,
	)
}

// PoseStamped is a pose expressed in a named frame at a given time.
type PoseStamped struct {
	Frame string    `json:"frame"`
	Stamp time.Time `json:"stamp"`
	Pose  Pose2D    `json:"pose"`
}

// NormalizeAngle wraps theta into (-pi, pi].
func NormalizeAngle(theta float64) float64 {
	if !isFinite(theta) {
		return theta
	}
	wrapped := math.Mod(theta+math.Pi, 2*math.Pi)
	if wrapped <= 0 {
		wrapped += 2 * math.Pi
	}
	return wrapped - math.Pi
}

// AngleDiff returns the signed smallest rotation taking b to a.
func AngleDiff(a, b float64) float64 {
	return NormalizeAngle(a - b)
}

// YawFromQuat extracts the rotation about Z from a unit quaternion.
func YawFromQuat(q quat.Number) float64 {
	sinYaw := 2 * (q.Real*q.Kmag + q.Imag*q.Jmag)
	cosYaw := 1 - 2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag)
	return math.Atan2(sinYaw, cosYaw)
}

// QuatFromYaw returns the unit quaternion for a pure rotation about Z.
func QuatFromYaw(yaw float64) quat.Number {
	sin, cos := math.Sincos(yaw / 2)
	return quat.Number{Real: cos, Kmag: sin}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
