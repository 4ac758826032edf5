package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Footprint is the robot outline in the base frame, as an ordered list of polygon vertices.
type Footprint []r2.Point

// DefaultFootprint is a 2x2 square centred on the base frame origin.
func DefaultFootprint() Footprint {
	return Footprint{{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1}, {X: -1, Y: 1}}
}

// NewFootprint builds a footprint from flat x/y pairs.
func NewFootprint(xy ...float64) (Footprint, error) {
	if len(xy)%2 != 0 {
		return nil, errors.New("footprint needs an even number of coordinates")
	}
	fp := make(Footprint, 0, len(xy)/2)
	for i := 0; i < len(xy); i += 2 {
		fp = append(fp, r2.Point{X: xy[i], Y: xy[i+1]})
	}
	return fp, fp.Validate()
}

// Validate checks that the footprint is a polygon with finite vertices.
func (fp Footprint) Validate() error {
	if len(fp) < 3 {
		return errors.Errorf("footprint needs at least 3 points, got %d", len(fp))
	}
	for i, p := range fp {
		if !isFinite(p.X) || !isFinite(p.Y) {
			return errors.Errorf("footprint point %d is not finite", i)
		}
	}
	return nil
}

// Transform places the footprint at pose, returning the vertices in the pose's frame.
func (fp Footprint) Transform(pose Pose2D) []r2.Point {
	sin, cos := math.Sincos(pose.Yaw)
	out := make([]r2.Point, len(fp))
	for i, p := range fp {
		out[i] = r2.Point{
			X: pose.X + cos*p.X - sin*p.Y,
			Y: pose.Y + sin*p.X + cos*p.Y,
		}
	}
	return out
}

// Edges returns the closed polygon outline of vertices as consecutive segments.
func Edges(vertices []r2.Point) [][2]r2.Point {
	if len(vertices) < 2 {
		return nil
	}
	edges := make([][2]r2.Point, 0, len(vertices))
	for i := range vertices {
		edges = append(edges, [2]r2.Point{vertices[i], vertices[(i+1)%len(vertices)]})
	}
	return edges
}

// PolygonContains reports whether p is inside the closed polygon vertices, by the even-odd rule.
func PolygonContains(vertices []r2.Point, p r2.Point) bool {
	inside := false
	for _, edge := range Edges(vertices) {
		a, b := edge[0], edge[1]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < a.X+(p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y) {
			inside = !inside
		}
	}
	return inside
}

// CircumscribedRadius is the distance from the base origin to the furthest vertex.
func (fp Footprint) CircumscribedRadius() float64 {
	var radius float64
	for _, p := range fp {
		radius = math.Max(radius, p.Norm())
	}
	return radius
}
