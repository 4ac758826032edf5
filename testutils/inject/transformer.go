// Package inject provides injectable implementations of the planner's interfaces for tests.
package inject

import (
	"context"

	"go.viam.com/xdwa/referenceframe"
	"go.viam.com/xdwa/spatialmath"
)

// Transformer is an injected transformer.
type Transformer struct {
	referenceframe.Transformer
	LookupAndApplyFunc func(ctx context.Context, pose spatialmath.PoseStamped, target string) (spatialmath.PoseStamped, error)
}

// LookupAndApply calls the injected LookupAndApply or the real version.
func (t *Transformer) LookupAndApply(
	ctx context.Context,
	pose spatialmath.PoseStamped,
	target string,
) (spatialmath.PoseStamped, error) {
	if t.LookupAndApplyFunc == nil {
		return t.Transformer.LookupAndApply(ctx, pose, target)
	}
	return t.LookupAndApplyFunc(ctx, pose, target)
}
