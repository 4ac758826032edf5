package navigation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"go.viam.com/xdwa/spatialmath"
)

// State is the phase of a goal execution.
type State uint8

// The set of execution states.
const (
	StateIdle = State(iota)
	StateAwaitingLocalizableGoal
	StateTracking
	StateReached
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocalizableGoal:
		return "awaiting_localizable_goal"
	case StateTracking:
		return "tracking"
	case StateReached:
		return "reached"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CycleStats counts what the control loop of the current execution has done.
type CycleStats struct {
	Cycles         int
	Published      int
	PoseFailures   int
	SearchFailures int
	Overruns       int
	LastCycle      time.Duration
	LastCost       float64
	Evaluations    int
}

// Status is a snapshot of the planner.
type Status struct {
	ExecutionID uuid.UUID
	State       State
	// Goal is the goal as received; LocalizedGoal is the same goal in the global frame once
	// the execution has been able to express it there.
	Goal          spatialmath.PoseStamped
	LocalizedGoal spatialmath.PoseStamped
	Stats         CycleStats
}

// odomSnapshot is the latest odometry message.
type odomSnapshot struct {
	pose spatialmath.PoseStamped
	vel  spatialmath.Velocity
}

// runtimeState is written by message handlers and read by the control loop and score functions.
// Values are only ever copied in and out whole.
type runtimeState struct {
	mu sync.RWMutex

	odom     odomSnapshot
	haveOdom bool

	// pose is the robot pose in the global frame as of the latest cycle.
	pose     spatialmath.PoseStamped
	havePose bool

	goal          spatialmath.PoseStamped
	localGoal     spatialmath.PoseStamped
	haveLocalGoal bool
}

func (rs *runtimeState) setOdometry(odom odomSnapshot) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.odom = odom
	rs.haveOdom = true
}

func (rs *runtimeState) odometry() (odomSnapshot, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.odom, rs.haveOdom
}

func (rs *runtimeState) setPose(pose spatialmath.PoseStamped) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.pose = pose
	rs.havePose = true
}

func (rs *runtimeState) currentPose() (spatialmath.PoseStamped, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.pose, rs.havePose
}

// setGoal stores a new goal and forgets the localization of the previous one.
func (rs *runtimeState) setGoal(goal spatialmath.PoseStamped) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.goal = goal
	rs.localGoal = spatialmath.PoseStamped{}
	rs.haveLocalGoal = false
}

func (rs *runtimeState) setLocalGoal(goal spatialmath.PoseStamped) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.localGoal = goal
	rs.haveLocalGoal = true
}

func (rs *runtimeState) localizedGoal() (spatialmath.PoseStamped, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.localGoal, rs.haveLocalGoal
}

func (rs *runtimeState) goals() (spatialmath.PoseStamped, spatialmath.PoseStamped) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.goal, rs.localGoal
}
