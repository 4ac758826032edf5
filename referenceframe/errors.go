package referenceframe

import (
	"github.com/pkg/errors"
)

// ErrFrameNotFound is returned (wrapped) when a lookup names a frame that is not in the system.
var ErrFrameNotFound = errors.New("frame not found")

// NewFrameMissingError returns an error indicating that the named frame is not in the system.
func NewFrameMissingError(name string) error {
	return errors.Wrapf(ErrFrameNotFound, "frame with name %q not in frame system", name)
}

// NewParentFrameMissingError returns an error indicating that a frame's parent is unknown.
func NewParentFrameMissingError(name, parent string) error {
	return errors.Wrapf(ErrFrameNotFound, "parent frame %q of %q not in frame system", parent, name)
}

// NewDuplicateFrameError returns an error indicating that a frame name is already taken.
func NewDuplicateFrameError(name string) error {
	return errors.Errorf("frame with name %q already in frame system", name)
}
