package costmap

import (
	"math"

	"github.com/pkg/errors"
)

// Obstacle is a circular obstacle in world coordinates.
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Config describes a static map built from circular obstacles, used when no map topic feeds the
// planner.
type Config struct {
	Info
	Obstacles []Obstacle `json:"obstacles,omitempty"`
	// InflationRadius spreads a decaying cost around each obstacle.
	InflationRadius float64 `json:"inflation_radius,omitempty"`
}

// Validate checks the static map config.
func (cfg Config) Validate() error {
	if err := cfg.Info.Validate(); err != nil {
		return err
	}
	if cfg.InflationRadius < 0 {
		return errors.New("inflation_radius cannot be negative")
	}
	for i, o := range cfg.Obstacles {
		if o.Radius < 0 {
			return errors.Errorf("obstacle %d has negative radius", i)
		}
	}
	return nil
}

// Rasterize renders the obstacles into row major cell costs.
func (cfg Config) Rasterize() []int8 {
	cells := make([]int8, cfg.Width*cfg.Height)
	for my := 0; my < cfg.Height; my++ {
		for mx := 0; mx < cfg.Width; mx++ {
			x := cfg.OriginX + (float64(mx)+0.5)*cfg.Resolution
			y := cfg.OriginY + (float64(my)+0.5)*cfg.Resolution
			cells[my*cfg.Width+mx] = cfg.costAt(x, y)
		}
	}
	return cells
}

func (cfg Config) costAt(x, y float64) int8 {
	cost := Free
	for _, o := range cfg.Obstacles {
		d := math.Hypot(x-o.X, y-o.Y) - o.Radius
		switch {
		case d <= 0:
			return Lethal
		case d < cfg.InflationRadius:
			inflated := int8(math.Round(float64(Lethal-1) * (1 - d/cfg.InflationRadius)))
			if inflated > cost {
				cost = inflated
			}
		}
	}
	return cost
}

// NewFromConfig builds a ready costmap from a static config.
func NewFromConfig(cfg Config) (*Costmap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := New()
	if err := c.Update(cfg.Info, cfg.Rasterize()); err != nil {
		return nil, err
	}
	return c, nil
}
