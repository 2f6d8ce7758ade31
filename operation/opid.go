// Package operation tracks in-flight commands and guarantees one motion at a time.
package operation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.viam.com/hoverbot/logging"
)

type opidKeyType string

const (
	opidKey    = opidKeyType("opid")
	sessionKey = opidKeyType("session")
)

// Operation is a command being handled by the bot.
type Operation struct {
	ID        uuid.UUID
	SessionID uuid.UUID
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
	o.cancel()
}

// Manager holds the operations of one bot.
type Manager struct {
	ops    map[string]*Operation
	lock   sync.Mutex
	logger logging.Logger
}

// NewManager creates a new manager for holding Operations.
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

// All returns all of the currently running operations, oldest first.
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

// CancelAll cancels every running operation.
func (m *Manager) CancelAll() {
	for _, op := range m.All() {
		m.logger.Debugw("cancelling operation", "id", op.ID, "method", op.Method)
		op.Cancel()
	}
}

// Create puts an operation on this context.
func (m *Manager) Create(ctx context.Context, method string, args interface{}) (context.Context, func()) {
	if ctx.Value(opidKey) != nil {
		panic("operations cannot be nested")
	}

	op := &Operation{
		ID:        uuid.New(),
		SessionID: SessionIDFromContext(ctx),
		Method:    method,
		Arguments: args,
		Started:   time.Now(),
		myManager: m,
	}
	ctx = context.WithValue(ctx, opidKey, op)
	ctx, op.cancel = context.WithCancel(ctx)

	m.add(op)

	return ctx, op.cleanup
}

// Get returns the current Operation. This can be nil.
func Get(ctx context.Context) *Operation {
	o := ctx.Value(opidKey)
	if o == nil {
		return nil
	}
	return o.(*Operation)
}

// WithSessionID attaches the id of the connection a command arrived on.
func WithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionIDFromContext returns the connection id attached to ctx, or uuid.Nil.
func SessionIDFromContext(ctx context.Context) uuid.UUID {
	id, ok := ctx.Value(sessionKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}
