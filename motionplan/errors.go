package motionplan

import "github.com/pkg/errors"

// ErrNoValidTrajectory is returned when every candidate of a search round was rejected.
var ErrNoValidTrajectory = errors.New("no valid trajectory")

// NewNoValidTrajectoryError reports the round in which the search ran out of candidates.
func NewNoValidTrajectoryError(round, candidates int) error {
	return errors.Wrapf(ErrNoValidTrajectory, "all %d candidates rejected in round %d", candidates, round)
}
