package ros

import (
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/spatialmath"
)

// Pose2D projects a pose onto the ground plane.
func (p Pose) Pose2D() spatialmath.Pose2D {
	q := quat.Number{Real: p.Orientation.W, Imag: p.Orientation.X, Jmag: p.Orientation.Y, Kmag: p.Orientation.Z}
	if q == (quat.Number{}) {
		q.Real = 1
	}
	return spatialmath.NewPose2D(p.Position.X, p.Position.Y, spatialmath.YawFromQuat(q))
}

// NewPose lifts a planar pose into 3D.
func NewPose(p spatialmath.Pose2D) Pose {
	q := spatialmath.QuatFromYaw(p.Yaw)
	return Pose{
		Position:    Point{X: p.X, Y: p.Y},
		Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// Spatial converts to a stamped planar pose.
func (p PoseStamped) Spatial() spatialmath.PoseStamped {
	return spatialmath.PoseStamped{
		Frame: p.Header.FrameID,
		Stamp: p.Header.Stamp.Time(),
		Pose:  p.Pose.Pose2D(),
	}
}

// NewPoseStamped converts a stamped planar pose.
func NewPoseStamped(p spatialmath.PoseStamped) PoseStamped {
	return PoseStamped{
		Header: Header{Stamp: NewTime(p.Stamp), FrameID: p.Frame},
		Pose:   NewPose(p.Pose),
	}
}

// Velocity is the planar part of the twist.
func (t Twist) Velocity() spatialmath.Velocity {
	return spatialmath.Velocity{X: t.Linear.X, Y: t.Linear.Y, Theta: t.Angular.Z}
}

// NewTwist converts a planar velocity.
func NewTwist(v spatialmath.Velocity) Twist {
	return Twist{Linear: Vector3{X: v.X, Y: v.Y}, Angular: Vector3{Z: v.Theta}}
}

// PoseStamped is the odometry pose in the header frame.
func (o Odometry) PoseStamped() spatialmath.PoseStamped {
	return spatialmath.PoseStamped{
		Frame: o.Header.FrameID,
		Stamp: o.Header.Stamp.Time(),
		Pose:  o.Pose.Pose.Pose2D(),
	}
}

// Velocity is the odometry twist.
func (o Odometry) Velocity() spatialmath.Velocity {
	return o.Twist.Twist.Velocity()
}

// NewPath builds a path of poses in one frame.
func NewPath(header Header, poses []spatialmath.Pose2D) Path {
	path := Path{Header: header, Poses: make([]PoseStamped, 0, len(poses))}
	for _, p := range poses {
		path.Poses = append(path.Poses, PoseStamped{Header: header, Pose: NewPose(p)})
	}
	return path
}

// CostmapInfo is the grid geometry. The origin's rotation is ignored.
func (g OccupancyGrid) CostmapInfo() costmap.Info {
	return costmap.Info{
		Resolution: g.Info.Resolution,
		Width:      int(g.Info.Width),
		Height:     int(g.Info.Height),
		OriginX:    g.Info.Origin.Position.X,
		OriginY:    g.Info.Origin.Position.Y,
	}
}

// NewOccupancyGrid wraps costmap cells in a grid message.
func NewOccupancyGrid(header Header, info costmap.Info, data []int8) OccupancyGrid {
	return OccupancyGrid{
		Header: header,
		Info: MapMetaData{
			Resolution: info.Resolution,
			Width:      uint32(info.Width),
			Height:     uint32(info.Height),
			Origin:     NewPose(spatialmath.Pose2D{X: info.OriginX, Y: info.OriginY}),
		},
		Data: data,
	}
}
