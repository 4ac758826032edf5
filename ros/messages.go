package ros

import "time"

// Time is a ROS timestamp.
type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
}

// NewTime converts t to a ROS timestamp.
func NewTime(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{Secs: t.Unix(), Nsecs: int64(t.Nanosecond())}
}

// Time converts to a time.Time. The zero Time maps to the zero time.Time.
func (t Time) Time() time.Time {
	if t.Secs == 0 && t.Nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point is geometry_msgs/Point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseStamped is geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// Twist is geometry_msgs/Twist.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// PoseWithCovariance is geometry_msgs/PoseWithCovariance. The covariance is not used.
type PoseWithCovariance struct {
	Pose Pose `json:"pose"`
}

// TwistWithCovariance is geometry_msgs/TwistWithCovariance. The covariance is not used.
type TwistWithCovariance struct {
	Twist Twist `json:"twist"`
}

// Odometry is nav_msgs/Odometry.
type Odometry struct {
	Header       Header              `json:"header"`
	ChildFrameID string              `json:"child_frame_id"`
	Pose         PoseWithCovariance  `json:"pose"`
	Twist        TwistWithCovariance `json:"twist"`
}

// Path is nav_msgs/Path.
type Path struct {
	Header Header        `json:"header"`
	Poses  []PoseStamped `json:"poses"`
}

// MapMetaData is nav_msgs/MapMetaData.
type MapMetaData struct {
	Resolution float64 `json:"resolution"`
	Width      uint32  `json:"width"`
	Height     uint32  `json:"height"`
	Origin     Pose    `json:"origin"`
}

// OccupancyGrid is nav_msgs/OccupancyGrid.
type OccupancyGrid struct {
	Header Header      `json:"header"`
	Info   MapMetaData `json:"info"`
	Data   []int8      `json:"data"`
}
