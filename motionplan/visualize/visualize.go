// Package visualize renders search results to images for offline inspection.
package visualize

import (
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"go.viam.com/xdwa/costmap"
	"go.viam.com/xdwa/motionplan/trajectory"
	"go.viam.com/xdwa/spatialmath"
)

const circleSegments = 32

var (
	keptColor      = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	bestColor      = color.RGBA{R: 30, G: 90, B: 220, A: 255}
	footprintColor = color.RGBA{R: 20, G: 160, B: 60, A: 255}
	obstacleColor  = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	goalColor      = color.RGBA{R: 240, G: 150, B: 0, A: 255}
)

// Scene is what one search saw and produced.
type Scene struct {
	Title     string
	Start     spatialmath.Pose2D
	Footprint spatialmath.Footprint
	Goal      *spatialmath.Pose2D
	Obstacles []costmap.Obstacle
	Kept      []*trajectory.Trajectory
	Best      *trajectory.Trajectory
}

// Plot draws the scene with equal axis scales.
func (s Scene) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	for _, o := range s.Obstacles {
		if err := addPolygon(p, circle(o), obstacleColor, 1); err != nil {
			return nil, err
		}
	}
	for i, traj := range s.Kept {
		line, err := trajectoryLine(traj, keptColor, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "trajectory %d", i)
		}
		p.Add(line)
	}
	if len(s.Kept) > 0 {
		p.Legend.Add("kept", &plotter.Line{LineStyle: draw.LineStyle{Color: keptColor, Width: vg.Points(1)}})
	}
	if s.Best != nil && s.Best.NumPoints() > 0 {
		line, err := trajectoryLine(s.Best, bestColor, 2)
		if err != nil {
			return nil, errors.Wrap(err, "best trajectory")
		}
		p.Add(line)
		p.Legend.Add("best", line)
	}
	if len(s.Footprint) > 0 {
		if err := addPolygon(p, s.Footprint.Transform(s.Start), footprintColor, 1.5); err != nil {
			return nil, err
		}
	}
	if s.Goal != nil {
		goal, err := plotter.NewScatter(plotter.XYs{{X: s.Goal.X, Y: s.Goal.Y}})
		if err != nil {
			return nil, err
		}
		goal.GlyphStyle.Color = goalColor
		goal.GlyphStyle.Shape = draw.CrossGlyph{}
		goal.GlyphStyle.Radius = vg.Points(5)
		p.Add(goal)
		p.Legend.Add("goal", goal)
	}

	p.Legend.Top = true
	equalAxes(p)
	return p, nil
}

// Save renders the scene to path; the format follows the file extension.
func (s Scene) Save(path string, width, height vg.Length) error {
	p, err := s.Plot()
	if err != nil {
		return err
	}
	return p.Save(width, height, path)
}

func trajectoryLine(traj *trajectory.Trajectory, c color.Color, width float64) (*plotter.Line, error) {
	pts := lo.Map(traj.Poses(), func(pose spatialmath.Pose2D, _ int) plotter.XY {
		return plotter.XY{X: pose.X, Y: pose.Y}
	})
	line, err := plotter.NewLine(plotter.XYs(pts))
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(width)
	return line, nil
}

func addPolygon(p *plot.Plot, vertices []r2.Point, c color.Color, width float64) error {
	if len(vertices) == 0 {
		return nil
	}
	pts := make(plotter.XYs, 0, len(vertices)+1)
	for _, v := range append(vertices, vertices[0]) {
		pts = append(pts, plotter.XY{X: v.X, Y: v.Y})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(width)
	p.Add(line)
	return nil
}

func circle(o costmap.Obstacle) []r2.Point {
	pts := make([]r2.Point, circleSegments)
	for i := range pts {
		sin, cos := math.Sincos(2 * math.Pi * float64(i) / circleSegments)
		pts[i] = r2.Point{X: o.X + o.Radius*cos, Y: o.Y + o.Radius*sin}
	}
	return pts
}

// equalAxes widens the narrower axis so one metre is the same length on both.
func equalAxes(p *plot.Plot) {
	xSpan := p.X.Max - p.X.Min
	ySpan := p.Y.Max - p.Y.Min
	switch {
	case xSpan > ySpan:
		mid := (p.Y.Max + p.Y.Min) / 2
		p.Y.Min, p.Y.Max = mid-xSpan/2, mid+xSpan/2
	case ySpan > xSpan:
		mid := (p.X.Max + p.X.Min) / 2
		p.X.Min, p.X.Max = mid-ySpan/2, mid+ySpan/2
	}
}
