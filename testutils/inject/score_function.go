package inject

import (
	"go.viam.com/xdwa/motionplan/scoring"
	"go.viam.com/xdwa/motionplan/trajectory"
)

// ScoreFunction is an injected score function. Without injected funcs it initializes
// successfully and scores every trajectory 0.
type ScoreFunction struct {
	NameValue      string
	InitializeFunc func(ctx scoring.Context) error
	ScoreFunc      func(traj *trajectory.Trajectory) float64
}

// Name implements scoring.Named when NameValue is set.
func (sf *ScoreFunction) Name() string {
	if sf.NameValue == "" {
		return "inject"
	}
	return sf.NameValue
}

// Initialize calls the injected Initialize.
func (sf *ScoreFunction) Initialize(ctx scoring.Context) error {
	if sf.InitializeFunc == nil {
		return nil
	}
	return sf.InitializeFunc(ctx)
}

// Score calls the injected Score.
func (sf *ScoreFunction) Score(traj *trajectory.Trajectory) float64 {
	if sf.ScoreFunc == nil {
		return 0
	}
	return sf.ScoreFunc(traj)
}
