package operation

import (
	"context"
	"sync"
)

// SingleOperationManager lets one motion own the drive at a time. Starting a new
// operation cancels the one in flight. A caller already running inside an operation
// joins it instead of replacing it.
type SingleOperationManager struct {
	mu      sync.Mutex
	current *singleOp
	started int
}

type singleOp struct {
	cancel context.CancelFunc
}

type singleOpKey struct{}

// New starts an operation and returns its context and the function that ends it.
func (sm *SingleOperationManager) New(ctx context.Context) (context.Context, func()) {
	if ctx.Value(singleOpKey{}) != nil {
		return ctx, func() {}
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cancelLocked()

	op := &singleOp{}
	ctx, op.cancel = context.WithCancel(context.WithValue(ctx, singleOpKey{}, op))
	sm.current = op
	sm.started++

	return ctx, func() {
		op.cancel()
		sm.mu.Lock()
		if sm.current == op {
			sm.current = nil
		}
		sm.mu.Unlock()
	}
}

// CancelRunning cancels the operation in flight. It does nothing when called from inside
// an operation, so a motion cannot cancel itself.
func (sm *SingleOperationManager) CancelRunning(ctx context.Context) {
	if ctx.Value(singleOpKey{}) != nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cancelLocked()
}

// OpRunning returns if there is a current operation.
func (sm *SingleOperationManager) OpRunning() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current != nil
}

// Started returns how many operations have been started, nested ones excluded.
func (sm *SingleOperationManager) Started() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.started
}

func (sm *SingleOperationManager) cancelLocked() {
	if sm.current == nil {
		return
	}
	sm.current.cancel()
	sm.current = nil
}
