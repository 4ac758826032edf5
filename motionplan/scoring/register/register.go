// Package register registers all built-in score functions.
package register

import (
	// register goal distance.
	_ "go.viam.com/xdwa/motionplan/scoring/goaldist"
	// register costmap.
	_ "go.viam.com/xdwa/motionplan/scoring/obstacle"
)
