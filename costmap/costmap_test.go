package costmap

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/xdwa/spatialmath"
)

func TestUpdateValidation(t *testing.T) {
	c := New()
	test.That(t, c.Ready(), test.ShouldBeFalse)
	_, ok := c.CostAt(0, 0)
	test.That(t, ok, test.ShouldBeFalse)

	err := c.Update(Info{Resolution: 0, Width: 2, Height: 2}, make([]int8, 4))
	test.That(t, err, test.ShouldNotBeNil)
	err = c.Update(Info{Resolution: 1, Width: 2, Height: 2}, make([]int8, 3))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, c.Ready(), test.ShouldBeFalse)

	data := []int8{0, 1, 2, 3}
	test.That(t, c.Update(Info{Resolution: 1, Width: 2, Height: 2, OriginX: -1, OriginY: -1}, data), test.ShouldBeNil)
	data[0] = 100 // the map keeps its own copy
	cost, ok := c.CostAt(-0.5, -0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cost, test.ShouldEqual, int8(0))
	cost, ok = c.CostAt(0.5, 0.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cost, test.ShouldEqual, int8(3))
	_, _, ok = c.WorldToMap(1.5, 0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestStaticMap(t *testing.T) {
	cfg := Config{
		Info:            Info{Resolution: 0.1, Width: 100, Height: 100, OriginX: -5, OriginY: -5},
		Obstacles:       []Obstacle{{X: 2, Y: 0, Radius: 0.5}},
		InflationRadius: 0.5,
	}
	c, err := NewFromConfig(cfg)
	test.That(t, err, test.ShouldBeNil)

	cost, ok := c.CostAt(2, 0)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cost, test.ShouldEqual, Lethal)

	cost, _ = c.CostAt(2.75, 0)
	test.That(t, cost, test.ShouldBeGreaterThan, Free)
	test.That(t, cost, test.ShouldBeLessThan, Lethal)

	cost, _ = c.CostAt(-3, -3)
	test.That(t, cost, test.ShouldEqual, Free)

	_, err = NewFromConfig(Config{Info: Info{Resolution: 1, Width: 1, Height: 1}, InflationRadius: -1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFootprintCost(t *testing.T) {
	cfg := Config{
		Info:      Info{Resolution: 0.1, Width: 100, Height: 100, OriginX: -5, OriginY: -5},
		Obstacles: []Obstacle{{X: 2, Y: 0, Radius: 0.3}},
	}
	c, err := NewFromConfig(cfg)
	test.That(t, err, test.ShouldBeNil)
	fp := spatialmath.Footprint{{X: 0.5, Y: 0.5}, {X: 0.5, Y: -0.5}, {X: -0.5, Y: -0.5}, {X: -0.5, Y: 0.5}}

	clear := c.FootprintCost(fp.Transform(spatialmath.NewPose2D(0, 0, 0)))
	test.That(t, clear.Max, test.ShouldEqual, Free)
	test.That(t, clear.Outside, test.ShouldBeFalse)
	test.That(t, clear.Cells, test.ShouldBeGreaterThan, 0)

	hit := c.FootprintCost(fp.Transform(spatialmath.NewPose2D(1.6, 0, 0)))
	test.That(t, hit.Max, test.ShouldEqual, Lethal)

	// an obstacle smaller than the footprint and entirely under it
	covered := c.FootprintCost(fp.Transform(spatialmath.NewPose2D(2, 0, 0)))
	test.That(t, covered.Max, test.ShouldEqual, Lethal)

	outside := c.FootprintCost(fp.Transform(spatialmath.NewPose2D(4.8, 0, 0)))
	test.That(t, outside.Outside, test.ShouldBeTrue)

	unknown := New()
	test.That(t, unknown.Update(Info{Resolution: 1, Width: 3, Height: 3, OriginX: -1.5, OriginY: -1.5},
		[]int8{-1, -1, -1, -1, 0, -1, -1, -1, -1}), test.ShouldBeNil)
	res := unknown.FootprintCost([]r2.Point{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}})
	test.That(t, res.Unknown, test.ShouldBeTrue)

	test.That(t, New().FootprintCost(fp.Transform(spatialmath.Pose2D{})), test.ShouldResemble, FootprintCost{})
}
