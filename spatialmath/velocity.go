package spatialmath

import "fmt"

// Velocity is a planar twist: linear x and y in the robot frame and angular velocity about Z.
type Velocity struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

func (v Velocity) String() string {
	return fmt.Sprintf("[vx %.3f vy %.3f w %.3f]", v.X, v.Y, v.Theta)
}

// IsFinite reports whether every component is a finite number.
func (v Velocity) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Theta)
}

// IsZero reports whether the velocity commands no motion.
func (v Velocity) IsZero() bool {
	return v == Velocity{}
}
