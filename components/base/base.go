// Package base defines the mobile base the planner drives.
package base

import (
	"context"

	"go.viam.com/xdwa/spatialmath"
)

// A Base is a mobile robot base that accepts velocity commands.
type Base interface {
	// SetVelocity commands a body frame velocity until the next command.
	SetVelocity(ctx context.Context, vel spatialmath.Velocity) error
	// Stop commands zero velocity.
	Stop(ctx context.Context) error
	// IsMoving reports whether the base is moving.
	IsMoving(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}
