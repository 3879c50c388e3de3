package pulse

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Memo is a cached derived computation: a subscriber of the sources its
// compute function reads, and a source for its own subscribers.
//
// Memos are lazy. A write upstream only marks the memo stale; the compute
// function runs on the next Get, and only if a source genuinely changed
// value. When a recomputation yields a value equal to the previous one
// (defaultEquals, or WithEquals), the memo's own subscribers are not
// notified — the equality gate is what keeps diamond-shaped graphs from
// cascading redundant work.
//
// The dependency list is rebuilt on every run from the reads the run
// performs, so conditional reads produce dynamic dependencies.
type Memo[T any] struct {
	src sourceNode
	sub subscriberNode

	compute func(prev T, first bool) T

	valueMu     sync.RWMutex
	value       T
	initialized bool

	// updatedAt is the write generation of the last genuine value change.
	updatedAt uint64

	// equal overrides defaultEquals for the propagation gate.
	equal func(T, T) bool

	// computeMu serializes recomputation; concurrent readers of a dirty
	// memo block until the first one has settled it. computingGID holds
	// the goroutine running the current recomputation so a re-entrant
	// read (a dependency cycle) fails instead of deadlocking.
	computeMu    sync.Mutex
	computingGID atomic.Int64
}

// NewMemo creates a memo computing its value with fn. fn is not run
// immediately; the first Get runs it. If an owner is current, the memo is
// adopted by it.
func NewMemo[T any](fn func() T) *Memo[T] {
	return NewMemoPrev(func(T, bool) T { return fn() })
}

// NewMemoPrev is NewMemo for computations that want the previous value:
// fn receives the value produced by the last run and first=true on the
// initial run (when prev is the zero value).
func NewMemoPrev[T any](fn func(prev T, first bool) T) *Memo[T] {
	id := nextID()
	m := &Memo[T]{
		src:     sourceNode{id: id},
		sub:     subscriberNode{id: id, st: stateDirty},
		compute: fn,
	}
	m.src.settle = m.updateIfNecessary
	if o := CurrentOwner(); o != nil {
		o.adopt(m)
	}
	return m
}

// WithEquals configures a custom equality function for the propagation
// gate. Useful when reflect.DeepEqual is too expensive or has the wrong
// semantics for T. Returns the memo for chaining at construction.
func (m *Memo[T]) WithEquals(fn func(a, b T) bool) *Memo[T] {
	m.equal = fn
	return m
}

// Get returns the memo's value, recomputing first if a dependency
// changed. If a computation is observing, an edge observer→memo is
// registered.
func (m *Memo[T]) Get() T {
	m.checkDisposed()
	if frame := currentObserver(); frame != nil {
		frame.sub.recordRead(&m.src, frame)
	}
	m.updateIfNecessary()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	return m.value
}

// GetUntracked returns the value without registering any edge. The memo
// still settles first, so the value is never stale.
func (m *Memo[T]) GetUntracked() T {
	m.checkDisposed()
	m.updateIfNecessary()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	return m.value
}

// With calls fn with the settled value under the read lock, avoiding the
// copy Get makes. Tracking semantics match Get.
func (m *Memo[T]) With(fn func(v T)) {
	m.checkDisposed()
	if frame := currentObserver(); frame != nil {
		frame.sub.recordRead(&m.src, frame)
	}
	m.updateIfNecessary()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	fn(m.value)
}

// WithUntracked is With without edge registration.
func (m *Memo[T]) WithUntracked(fn func(v T)) {
	m.checkDisposed()
	m.updateIfNecessary()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	fn(m.value)
}

// ID returns the unique identifier for this memo.
func (m *Memo[T]) ID() uint64 {
	return m.src.id
}

// UpdatedAt returns the write generation of the last genuine value
// change, 0 if the memo never changed value.
func (m *Memo[T]) UpdatedAt() uint64 {
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()
	return m.updatedAt
}

// markStale implements subscriber. Raising out of stateClean pushes
// stateCheck to the memo's own subscribers; repeated raises within one
// write pass are no-ops.
func (m *Memo[T]) markStale(s nodeState) {
	_, fromClean := m.sub.raiseState(s)
	if fromClean {
		m.src.stale(stateCheck)
	}
}

// updateIfNecessary settles the memo to stateClean. A stateCheck memo
// first settles its sources; if none of them dirtied it, it becomes clean
// without recomputing and without notifying anyone.
func (m *Memo[T]) updateIfNecessary() {
	switch m.sub.state() {
	case stateClean:
		return
	case stateCheck:
		m.sub.settleSources()
	}
	if m.sub.state() == stateDirty {
		m.recompute()
		return
	}
	m.sub.settleClean()
}

// recompute reruns the compute function with this memo as the active
// observer, rebuilding the dependency list from the run's reads.
//
// Panic policy: the previous observer is restored, the stale value is
// kept, the state returns to stateClean, and the panic propagates. A
// later upstream write re-marks the memo and the next read retries.
func (m *Memo[T]) recompute() {
	gid := goid.Get()
	if m.computingGID.Load() == gid {
		panic(fmt.Errorf("pulse: memo %d depends on itself", m.src.id))
	}

	notify := false
	func() {
		m.computeMu.Lock()
		defer m.computeMu.Unlock()
		if m.sub.state() != stateDirty {
			// Another goroutine settled the memo while we waited.
			return
		}
		m.computingGID.Store(gid)
		defer m.computingGID.Store(0)

		m.valueMu.Lock()
		prev := m.value
		wasInitialized := m.initialized
		m.valueMu.Unlock()

		instrumentation.MemoRecompute()
		m.sub.clearSources(m)

		frame := observerFrame{sub: m}
		restore := pushObserver(&frame)
		ok := false
		var next T
		func() {
			defer func() {
				restore()
				if !ok {
					m.sub.setState(stateClean)
				}
			}()
			next = m.compute(prev, !wasInitialized)
			ok = true
		}()

		changed := !wasInitialized || !m.equals(prev, next)

		m.valueMu.Lock()
		m.value = next
		m.initialized = true
		if changed {
			m.updatedAt = nextGeneration()
		}
		m.valueMu.Unlock()

		// Settle while still holding computeMu: once subscribers hear
		// about the change, reads of this memo must find the stored
		// value and stateClean, never a recompute in flight.
		m.sub.setState(stateClean)

		notify = wasInitialized && changed
	}()

	// Notify outside computeMu with the goroutine marker cleared: a
	// subscriber reacting to the change may legitimately read this memo
	// again or dirty it through an upstream write. Subscribers were
	// already marked stateCheck when staleness propagated; the genuine
	// change upgrades them to stateDirty so the settling walk knows a
	// recomputation is unavoidable. An unchanged value leaves them
	// stateCheck and they settle back to clean.
	if notify {
		m.src.stale(stateDirty)
	}
}

func (m *Memo[T]) equals(a, b T) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

// subscriber plumbing, delegated to the embedded halves.

func (m *Memo[T]) subscriberID() uint64 { return m.sub.id }

func (m *Memo[T]) recordRead(src *sourceNode, _ *observerFrame) {
	m.sub.addSource(m, src)
}

func (m *Memo[T]) rebindSourceSlot(idx, slot int) { m.sub.rebindSourceSlot(idx, slot) }

func (m *Memo[T]) dropSource(src *sourceNode) { m.sub.dropSource(src) }

// disposeNode implements the owner disposal hook: both halves of the memo
// leave the graph — its edges to sources and its subscribers' edges to it.
func (m *Memo[T]) disposeNode() {
	if m.sub.disposed.Swap(true) {
		return
	}
	m.src.disposed.Store(true)
	m.sub.clearSources(m)
	m.src.detachAll()
}

func (m *Memo[T]) checkDisposed() {
	if m.sub.disposed.Load() {
		panic(fmt.Errorf("%w: memo %d", ErrDisposedAccess, m.src.id))
	}
}
