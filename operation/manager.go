package operation

import (
	"context"
	"sync"
	"time"

	"go.viam.com/utils"
)

// SingleOperationManager ensures only 1 operation is happening a time
// An operation can be nested, so if there is already an operation in progress,
// it can have sub-operations without an issue.
type SingleOperationManager struct {
	mu        sync.Mutex
	currentOp *anOp

	// serializes Go so that joining the old operation and starting the new one is atomic
	goMu sync.Mutex
}

// CancelRunning cancel's a current operation unless it's mine.
func (sm *SingleOperationManager) CancelRunning(ctx context.Context) {
	if ctx.Value(somCtxKeySingleOp) != nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cancelInLock(ctx)
}

// CancelAndWait cancels the current operation and, if it was started with Go, blocks until its
// function has returned.
func (sm *SingleOperationManager) CancelAndWait() {
	sm.mu.Lock()
	op := sm.currentOp
	sm.cancelInLock(context.Background())
	sm.mu.Unlock()
	if op != nil {
		op.running.Wait()
	}
}

// OpRunning returns if there is a current operation.
func (sm *SingleOperationManager) OpRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.currentOp != nil
}

type somCtxKey byte

const somCtxKeySingleOp = somCtxKey(iota)

// New creates a new operation, cancels previous, returns a new context and function to call when done.
func (sm *SingleOperationManager) New(ctx context.Context) (context.Context, func()) {
	// handle nested ops
	if ctx.Value(somCtxKeySingleOp) != nil {
		return ctx, func() {}
	}

	sm.mu.Lock()

	// first cancel any old operation
	sm.cancelInLock(ctx)

	theOp := sm.newOpInLock(ctx)
	sm.mu.Unlock()

	return theOp.ctx, func() { sm.finish(theOp) }
}

// Go cancels the current operation, waits for it to stop, and then runs fn as the new operation
// on its own goroutine. fn must return once its context is done.
func (sm *SingleOperationManager) Go(ctx context.Context, fn func(ctx context.Context)) {
	sm.goMu.Lock()
	defer sm.goMu.Unlock()

	sm.CancelAndWait()

	sm.mu.Lock()
	sm.cancelInLock(ctx)
	theOp := sm.newOpInLock(ctx)
	theOp.running.Add(1)
	sm.mu.Unlock()

	utils.PanicCapturingGo(func() {
		defer theOp.running.Done()
		defer sm.finish(theOp)
		fn(theOp.ctx)
	})
}

// NewTimedWaitOp returns true if it finished, false if cancelled.
// If there are other operations pending, this will cancel them.
func (sm *SingleOperationManager) NewTimedWaitOp(ctx context.Context, dur time.Duration) bool {
	ctx, finish := sm.New(ctx)
	defer finish()

	return utils.SelectContextOrWait(ctx, dur)
}

// WaitForSuccess will call testFunc every pollTime until it returns true or an error.
func (sm *SingleOperationManager) WaitForSuccess(
	ctx context.Context,
	pollTime time.Duration,
	testFunc func(ctx context.Context) (bool, error),
) error {
	ctx, finish := sm.New(ctx)
	defer finish()

	for {
		res, err := testFunc(ctx)
		if err != nil {
			return err
		}
		if res {
			return nil
		}

		if !utils.SelectContextOrWait(ctx, pollTime) {
			return ctx.Err()
		}
	}
}

func (sm *SingleOperationManager) newOpInLock(ctx context.Context) *anOp {
	theOp := &anOp{}
	ctx = context.WithValue(ctx, somCtxKeySingleOp, theOp)
	theOp.ctx, theOp.cancelFunc = context.WithCancel(ctx)
	sm.currentOp = theOp
	return theOp
}

func (sm *SingleOperationManager) finish(theOp *anOp) {
	theOp.cancelFunc()
	sm.mu.Lock()
	if theOp == sm.currentOp {
		sm.currentOp = nil
	}
	sm.mu.Unlock()
}

func (sm *SingleOperationManager) cancelInLock(ctx context.Context) {
	myOp := ctx.Value(somCtxKeySingleOp)
	op := sm.currentOp

	if op == nil || myOp == op {
		return
	}

	op.cancelFunc()

	sm.currentOp = nil
}

type anOp struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
	running    sync.WaitGroup
}
