// Package referenceframe resolves planar poses between named coordinate frames.
package referenceframe

import (
	"context"

	"go.viam.com/xdwa/spatialmath"
)

// World is the name of the root frame of every FrameSystem.
const World = "world"

// Transformer re-expresses a stamped pose in a target frame. Implementations may block, and
// callers should treat any error as "no transform available right now".
type Transformer interface {
	LookupAndApply(ctx context.Context, pose spatialmath.PoseStamped, target string) (spatialmath.PoseStamped, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, pose spatialmath.PoseStamped, target string) (spatialmath.PoseStamped, error)

// LookupAndApply calls f.
func (f TransformerFunc) LookupAndApply(
	ctx context.Context,
	pose spatialmath.PoseStamped,
	target string,
) (spatialmath.PoseStamped, error) {
	return f(ctx, pose, target)
}
