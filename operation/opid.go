// Package operation tracks long running operations and keeps at most one of them in charge.
package operation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.viam.com/xdwa/logging"
)

type opidKeyType string

const opidKey = opidKeyType("opid")

// Operation is a tracked unit of work, such as driving to one goal.
type Operation struct {
	ID        uuid.UUID
	Method    string
	Arguments interface{}
	Started   time.Time

	myManager *Manager
	cancel    context.CancelFunc
}

// Cancel cancel the context associated with an operation.
func (o *Operation) Cancel() {
	o.cancel()
}

func (o *Operation) cleanup() {
	o.myManager.remove(o.ID)
}

// Manager holds the operations that are currently running.
type Manager struct {
	ops    map[string]*Operation
	lock   sync.Mutex
	logger logging.Logger
}

// NewManager returns an empty Manager.
func NewManager(logger logging.Logger) *Manager {
	return &Manager{ops: map[string]*Operation{}, logger: logger}
}

func (m *Manager) remove(id uuid.UUID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.ops, id.String())
}

func (m *Manager) add(op *Operation) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.ops[op.ID.String()] = op
}

// All returns the running operations, oldest first.
func (m *Manager) All() []*Operation {
	m.lock.Lock()
	defer m.lock.Unlock()
	a := make([]*Operation, 0, len(m.ops))
	for _, o := range m.ops {
		a = append(a, o)
	}
	sort.Slice(a, func(i, j int) bool { return a[i].Started.Before(a[j].Started) })
	return a
}

// Find finds an op by id, could return nil.
func (m *Manager) Find(id uuid.UUID) *Operation {
	return m.FindString(id.String())
}

// FindString finds an op by id, could return nil.
func (m *Manager) FindString(id string) *Operation {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.ops[id]
}

// Create puts an operation on this context.
func (m *Manager) Create(ctx context.Context, method string, args interface{}) (context.Context, func()) {
	if ctx.Value(opidKey) != nil {
		panic("operations cannot be nested")
	}

	op := &Operation{
		ID:        uuid.New(),
		Method:    method,
		Arguments: args,
		Started:   time.Now(),
		myManager: m,
	}
	ctx = context.WithValue(ctx, opidKey, op)
	ctx, op.cancel = context.WithCancel(ctx)

	m.add(op)
	if m.logger != nil {
		m.logger.Debugw("operation started", "id", op.ID.String(), "method", method)
	}

	return ctx, func() {
		op.cancel()
		op.cleanup()
	}
}

// Get returns the current Operation. This can be nil.
func Get(ctx context.Context) *Operation {
	o := ctx.Value(opidKey)
	if o == nil {
		return nil
	}
	return o.(*Operation)
}
