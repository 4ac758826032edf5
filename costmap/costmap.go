// Package costmap holds the occupancy grid that obstacle aware score functions read.
package costmap

import (
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/xdwa/spatialmath"
)

// Cell cost conventions, matching occupancy grid messages.
const (
	Unknown int8 = -1
	Free    int8 = 0
	Lethal  int8 = 100
)

// Info describes the geometry of a grid. The origin is the world position of cell (0, 0)'s corner.
type Info struct {
	Resolution float64 `json:"resolution"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	OriginX    float64 `json:"origin_x"`
	OriginY    float64 `json:"origin_y"`
}

// Validate checks the grid geometry.
func (info Info) Validate() error {
	if info.Resolution <= 0 || math.IsNaN(info.Resolution) {
		return errors.Errorf("costmap resolution must be positive, got %v", info.Resolution)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return errors.Errorf("costmap dimensions must be positive, got %dx%d", info.Width, info.Height)
	}
	return nil
}

// FootprintCost summarizes the cells under a footprint outline.
type FootprintCost struct {
	Max     int8
	Sum     float64
	Cells   int
	Unknown bool
	Outside bool
}

// Costmap is a concurrency safe occupancy grid. It is written by the message handler and read by
// score functions.
type Costmap struct {
	mu    sync.RWMutex
	info  Info
	cells []int8
	ready bool
}

// New returns an empty costmap that reports not ready until the first Update.
func New() *Costmap {
	return &Costmap{}
}

// Update replaces the grid contents. data is row major, starting at the origin cell.
func (c *Costmap) Update(info Info, data []int8) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if len(data) != info.Width*info.Height {
		return errors.Errorf("costmap data has %d cells, expected %d", len(data), info.Width*info.Height)
	}
	cells := make([]int8, len(data))
	copy(cells, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
	c.cells = cells
	c.ready = true
	return nil
}

// Ready reports whether a grid has been received.
func (c *Costmap) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Info returns the current grid geometry.
func (c *Costmap) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// WorldToMap converts a world coordinate to cell indices; ok is false outside the grid.
func (c *Costmap) WorldToMap(x, y float64) (int, int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.worldToMap(x, y)
}

func (c *Costmap) worldToMap(x, y float64) (int, int, bool) {
	if !c.ready {
		return 0, 0, false
	}
	mx := int(math.Floor((x - c.info.OriginX) / c.info.Resolution))
	my := int(math.Floor((y - c.info.OriginY) / c.info.Resolution))
	if mx < 0 || my < 0 || mx >= c.info.Width || my >= c.info.Height {
		return mx, my, false
	}
	return mx, my, true
}

// CostAt returns the cost of the cell containing (x, y); ok is false outside the grid.
func (c *Costmap) CostAt(x, y float64) (int8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mx, my, ok := c.worldToMap(x, y)
	if !ok {
		return Unknown, false
	}
	return c.cells[my*c.info.Width+mx], true
}

// FootprintCost summarizes the distinct cells under polygon (world coordinates): those its closed
// outline crosses, walked at half cell spacing, and those whose centre lies inside it.
func (c *Costmap) FootprintCost(polygon []r2.Point) FootprintCost {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out FootprintCost
	if !c.ready {
		return out
	}
	step := c.info.Resolution / 2
	visited := map[int]struct{}{}
	visit := func(p r2.Point) {
		mx, my, ok := c.worldToMap(p.X, p.Y)
		if !ok {
			out.Outside = true
			return
		}
		idx := my*c.info.Width + mx
		if _, seen := visited[idx]; seen {
			return
		}
		visited[idx] = struct{}{}
		cost := c.cells[idx]
		out.Cells++
		if cost == Unknown {
			out.Unknown = true
			return
		}
		out.Sum += float64(cost)
		if cost > out.Max {
			out.Max = cost
		}
	}

	for _, edge := range spatialmath.Edges(polygon) {
		delta := edge[1].Sub(edge[0])
		n := int(math.Ceil(delta.Norm() / step))
		if n < 1 {
			n = 1
		}
		for i := 0; i <= n; i++ {
			visit(edge[0].Add(delta.Mul(float64(i) / float64(n))))
		}
	}

	if len(polygon) < 3 {
		return out
	}
	bound := r2.RectFromPoints(polygon...)
	res := c.info.Resolution
	mx0 := max(0, int(math.Floor((bound.X.Lo-c.info.OriginX)/res)))
	mx1 := min(c.info.Width-1, int(math.Floor((bound.X.Hi-c.info.OriginX)/res)))
	my0 := max(0, int(math.Floor((bound.Y.Lo-c.info.OriginY)/res)))
	my1 := min(c.info.Height-1, int(math.Floor((bound.Y.Hi-c.info.OriginY)/res)))
	for my := my0; my <= my1; my++ {
		for mx := mx0; mx <= mx1; mx++ {
			centre := r2.Point{
				X: c.info.OriginX + (float64(mx)+0.5)*res,
				Y: c.info.OriginY + (float64(my)+0.5)*res,
			}
			if spatialmath.PolygonContains(polygon, centre) {
				visit(centre)
			}
		}
	}
	return out
}
