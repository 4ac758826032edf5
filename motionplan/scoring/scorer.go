package scoring

import (
	"fmt"

	"go.viam.com/xdwa/motionplan/trajectory"
)

// Rejected is the cost assigned to a trajectory that any score function vetoed.
const Rejected = -1.0

// Scorer sums score functions in load order.
type Scorer struct {
	fns []ScoreFunction
}

// NewScorer returns a scorer over fns. A scorer with no functions scores every trajectory 0.
func NewScorer(fns ...ScoreFunction) *Scorer {
	return &Scorer{fns: append([]ScoreFunction(nil), fns...)}
}

// Score sets traj.Cost to the sum of all contributions, or to Rejected as soon as one is
// negative, and records how many points were scored.
func (s *Scorer) Score(traj *trajectory.Trajectory) {
	traj.Cost = 0
	traj.NumPointsScored = traj.NumPoints()
	for _, fn := range s.fns {
		cost := fn.Score(traj)
		if cost < 0 {
			traj.Cost = Rejected
			return
		}
		traj.Cost += cost
	}
}

// Len is the number of loaded score functions.
func (s *Scorer) Len() int {
	return len(s.fns)
}

// Names lists the loaded functions in order.
func (s *Scorer) Names() []string {
	names := make([]string, 0, len(s.fns))
	for _, fn := range s.fns {
		if named, ok := fn.(Named); ok {
			names = append(names, named.Name())
			continue
		}
		names = append(names, fmt.Sprintf("%T", fn))
	}
	return names
}
