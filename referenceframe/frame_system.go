package referenceframe

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"go.viam.com/xdwa/spatialmath"
)

const defaultCacheSize = 64

// FrameConfig describes one static frame: its pose expressed in its parent.
type FrameConfig struct {
	Name   string  `json:"name"`
	Parent string  `json:"parent"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Yaw    float64 `json:"yaw"`
}

type staticFrame struct {
	parent string
	offset spatialmath.Pose2D // pose of this frame in its parent
}

// FrameSystem is a tree of planar frames rooted at World. It is safe for concurrent use.
type FrameSystem struct {
	mu     sync.RWMutex
	frames map[string]staticFrame
	// toWorld caches the composed frame -> world transform per frame name.
	toWorld *lru.Cache[string, spatialmath.Pose2D]
}

// NewEmptyFrameSystem returns a frame system holding only the world frame.
func NewEmptyFrameSystem() *FrameSystem {
	cache, err := lru.New[string, spatialmath.Pose2D](defaultCacheSize)
	if err != nil {
		// only fails on a non-positive size
		panic(err)
	}
	return &FrameSystem{frames: map[string]staticFrame{}, toWorld: cache}
}

// NewFrameSystemFromConfig builds a frame system, adding frames once their parent exists so the
// config may list them in any order.
func NewFrameSystemFromConfig(cfgs []FrameConfig) (*FrameSystem, error) {
	fs := NewEmptyFrameSystem()
	pending := append([]FrameConfig(nil), cfgs...)
	for len(pending) > 0 {
		var next []FrameConfig
		for _, cfg := range pending {
			if !fs.FrameExists(cfg.Parent) {
				next = append(next, cfg)
				continue
			}
			if err := fs.AddFrame(cfg.Name, cfg.Parent, spatialmath.NewPose2D(cfg.X, cfg.Y, cfg.Yaw)); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			return nil, NewParentFrameMissingError(next[0].Name, next[0].Parent)
		}
		pending = next
	}
	return fs, nil
}

// FrameExists reports whether the named frame is in the system.
func (fs *FrameSystem) FrameExists(name string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.frameExists(name)
}

func (fs *FrameSystem) frameExists(name string) bool {
	if name == World {
		return true
	}
	_, ok := fs.frames[name]
	return ok
}

// AddFrame attaches a new frame to parent at the given offset.
func (fs *FrameSystem) AddFrame(name, parent string, offset spatialmath.Pose2D) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.frameExists(parent) {
		return NewParentFrameMissingError(name, parent)
	}
	if fs.frameExists(name) {
		return NewDuplicateFrameError(name)
	}
	fs.frames[name] = staticFrame{parent: parent, offset: offset}
	return nil
}

// SetTransform moves an existing frame relative to its parent.
func (fs *FrameSystem) SetTransform(name string, offset spatialmath.Pose2D) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	frame, ok := fs.frames[name]
	if !ok {
		return NewFrameMissingError(name)
	}
	frame.offset = offset
	fs.frames[name] = frame
	fs.toWorld.Purge()
	return nil
}

// RemoveFrame deletes the frame and all its descendants.
func (fs *FrameSystem) RemoveFrame(name string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.removeFrame(name)
	fs.toWorld.Purge()
}

func (fs *FrameSystem) removeFrame(name string) {
	delete(fs.frames, name)
	for child, frame := range fs.frames {
		if frame.parent == name {
			fs.removeFrame(child)
		}
	}
}

// FrameNames returns the sorted names of all non-world frames.
func (fs *FrameSystem) FrameNames() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	names := make([]string, 0, len(fs.frames))
	for name := range fs.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TracebackFrame returns the chain of frame names from the query up to and including World.
func (fs *FrameSystem) TracebackFrame(name string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.frameExists(name) {
		return nil, NewFrameMissingError(name)
	}
	chain := []string{name}
	for name != World {
		name = fs.frames[name].parent
		chain = append(chain, name)
	}
	return chain, nil
}

// Transform expresses pose (given in frame src) in frame dst.
func (fs *FrameSystem) Transform(pose spatialmath.Pose2D, src, dst string) (spatialmath.Pose2D, error) {
	if src == dst {
		return pose, nil
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.frameExists(src) {
		return spatialmath.Pose2D{}, NewFrameMissingError(src)
	}
	if !fs.frameExists(dst) {
		return spatialmath.Pose2D{}, NewFrameMissingError(dst)
	}
	srcToWorld := fs.frameToWorld(src)
	dstToWorld := fs.frameToWorld(dst)
	return spatialmath.Compose(spatialmath.Inverse(dstToWorld), spatialmath.Compose(srcToWorld, pose)), nil
}

// LookupAndApply implements Transformer.
func (fs *FrameSystem) LookupAndApply(
	ctx context.Context,
	pose spatialmath.PoseStamped,
	target string,
) (spatialmath.PoseStamped, error) {
	if err := ctx.Err(); err != nil {
		return spatialmath.PoseStamped{}, err
	}
	out, err := fs.Transform(pose.Pose, pose.Frame, target)
	if err != nil {
		return spatialmath.PoseStamped{}, err
	}
	return spatialmath.PoseStamped{Frame: target, Stamp: pose.Stamp, Pose: out}, nil
}

// frameToWorld composes offsets from name up to World. Callers hold at least the read lock.
func (fs *FrameSystem) frameToWorld(name string) spatialmath.Pose2D {
	if cached, ok := fs.toWorld.Get(name); ok {
		return cached
	}
	composed := spatialmath.Pose2D{}
	for frame := name; frame != World; frame = fs.frames[frame].parent {
		// add each transform on the left
		composed = spatialmath.Compose(fs.frames[frame].offset, composed)
	}
	fs.toWorld.Add(name, composed)
	return composed
}
