package pulse

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// disposable is the owner-side handle on an owned node. Each node kind
// implements the detachment it needs: a signal strips itself out of its
// subscribers, a memo leaves the graph on both sides, an effect runs its
// cleanup and drops its sources.
type disposable interface {
	disposeNode()
}

// Owner is a node in the disposal tree. It governs lifetime, not
// reactivity: an owner adopts every signal, memo, and effect created
// while it is current, and disposing it releases all of them, exactly
// once, children first. The disposal tree is independent of the
// dependency graph — who disposes a node is unrelated to what it reacts
// with.
type Owner struct {
	id     uint64
	parent *Owner

	mu       sync.Mutex
	children []*Owner
	cleanups []func()
	owned    []disposable
	effects  []*Effect
	values   map[any]any

	disposed atomic.Bool
	paused   atomic.Bool
}

// NewOwner creates an owner under parent, registering it as a child so
// disposing the parent cascades. A nil parent creates a root owner.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		parent.addChild(o)
	}
	return o
}

// Root runs fn inside a fresh owner scope created under the current owner
// (or as a root when none is current) and hands fn the scope's dispose
// function. Nodes created inside fn belong to the new scope.
func Root(fn func(dispose func())) {
	o := NewOwner(CurrentOwner())
	WithOwner(o, func() {
		fn(o.Dispose)
	})
}

// ChildOwner creates an owner under the current owner and returns it.
// Panics via NewOwner rules never apply here; with no current owner the
// child is a root.
func ChildOwner() *Owner {
	return NewOwner(CurrentOwner())
}

// Run executes fn with this owner current, restoring the previous owner
// afterwards (panic-safe).
func (o *Owner) Run(fn func()) {
	WithOwner(o, fn)
}

// ID returns the unique identifier for this owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent owner, or nil for a root.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed reports whether Dispose has run.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

// Pause keeps this owner's effects from executing until Resume. Writes
// still mark them stale; they just never reach their bodies, which guards
// consumers against running against partially-torn-down state.
func (o *Owner) Pause() {
	o.paused.Store(true)
}

// Resume lifts Pause and settles every owned effect that went stale while
// paused.
func (o *Owner) Resume() {
	if o.disposed.Load() {
		return
	}
	o.paused.Store(false)

	o.mu.Lock()
	effects := make([]*Effect, len(o.effects))
	copy(effects, o.effects)
	o.mu.Unlock()

	for _, e := range effects {
		if e.base.state() != stateClean {
			if e.deferred {
				scheduleEffect(e)
			} else {
				e.updateIfNecessary()
			}
		}
	}
}

// suspended reports whether effects owned here must not execute.
func (o *Owner) suspended() bool {
	return o.paused.Load() || o.disposed.Load()
}

// OnCleanup registers fn to run when this owner is disposed, after its
// children are gone but before its nodes leave the graph. Cleanups run in
// registration order.
func OnCleanup(fn func()) {
	o := CurrentOwner()
	if o == nil {
		panic(ErrNoOwner)
	}
	o.OnCleanup(fn)
}

// OnCleanup registers fn on this owner. Registering on a disposed owner
// is a programming error and panics.
func (o *Owner) OnCleanup(fn func()) {
	o.checkDisposed()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleanups = append(o.cleanups, fn)
}

// Dispose releases the owner: children first (depth-first, in creation
// order), then this owner's cleanups in registration order, then every
// owned node leaves the graph — disposed sources are stripped from
// surviving subscribers' source lists and disposed subscribers from
// surviving sources' subscriber lists. Idempotent; disposal is the only
// place nodes are removed.
func (o *Owner) Dispose() {
	if o.disposed.Swap(true) {
		return
	}

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	o.mu.Lock()
	children := o.children
	o.children = nil
	o.mu.Unlock()
	for _, child := range children {
		child.Dispose()
	}

	o.mu.Lock()
	cleanups := o.cleanups
	o.cleanups = nil
	o.mu.Unlock()
	for _, fn := range cleanups {
		fn()
	}

	o.mu.Lock()
	owned := o.owned
	o.owned = nil
	o.effects = nil
	o.values = nil
	o.mu.Unlock()
	for _, node := range owned {
		node.disposeNode()
	}

	instrumentation.OwnerDisposed()
}

func (o *Owner) addChild(child *Owner) {
	o.checkDisposed()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// adopt registers a signal or memo as owned. Adopting into a disposed
// owner is a programming error and panics.
func (o *Owner) adopt(node disposable) {
	o.checkDisposed()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owned = append(o.owned, node)
}

// adoptEffect registers an effect as owned; the effect list additionally
// feeds Resume.
func (o *Owner) adoptEffect(e *Effect) {
	o.checkDisposed()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owned = append(o.owned, e)
	o.effects = append(o.effects, e)
}

// provide stores a context value on this owner, shadowing any value of
// the same type provided by an ancestor.
func (o *Owner) provide(key, value any) {
	o.checkDisposed()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.values == nil {
		o.values = make(map[any]any)
	}
	o.values[key] = value
}

// lookup walks this owner and then its ancestors for key. O(depth).
func (o *Owner) lookup(key any) (any, bool) {
	o.checkDisposed()
	for cur := o; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v, ok := cur.values[key]
		cur.mu.Unlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// take is lookup that removes the entry where it was found, so no later
// caller observes it.
func (o *Owner) take(key any) (any, bool) {
	o.checkDisposed()
	for cur := o; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v, ok := cur.values[key]
		if ok {
			delete(cur.values, key)
		}
		cur.mu.Unlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

func (o *Owner) checkDisposed() {
	if o.disposed.Load() {
		panic(fmt.Errorf("%w: owner %d", ErrDisposedAccess, o.id))
	}
}
