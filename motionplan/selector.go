package motionplan

import "go.viam.com/xdwa/motionplan/trajectory"

// SelectBest returns the k lowest cost trajectories of trajs in a new slice. Among equal costs the
// earlier trajectory wins. trajs must not be empty.
func SelectBest(trajs []*trajectory.Trajectory, k int) []*trajectory.Trajectory {
	if len(trajs) == 0 {
		panic("SelectBest called with no trajectories")
	}
	if k > len(trajs) {
		k = len(trajs)
	}
	if k < 1 {
		k = 1
	}

	kept := make([]*trajectory.Trajectory, k)
	copy(kept, trajs[:k])
	// order holds the input index of each kept slot
	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	worst := worstIndex(kept, order)
	for i, candidate := range trajs[k:] {
		if candidate.Cost < kept[worst].Cost {
			kept[worst] = candidate
			order[worst] = k + i
			worst = worstIndex(kept, order)
		}
	}
	return kept
}

// worstIndex finds the slot with the highest cost. Among equal costs the slot holding the latest
// input is the worst, so earlier trajectories survive ties.
func worstIndex(trajs []*trajectory.Trajectory, order []int) int {
	worst := 0
	for i := 1; i < len(trajs); i++ {
		if trajs[i].Cost > trajs[worst].Cost ||
			(trajs[i].Cost == trajs[worst].Cost && order[i] > order[worst]) {
			worst = i
		}
	}
	return worst
}

// lowestCost is the first minimum cost trajectory of a non-empty set.
func lowestCost(trajs []*trajectory.Trajectory) *trajectory.Trajectory {
	best := trajs[0]
	for _, t := range trajs[1:] {
		if t.Cost < best.Cost {
			best = t
		}
	}
	return best
}
