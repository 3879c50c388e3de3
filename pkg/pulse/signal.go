package pulse

import (
	"fmt"
	"sync"
)

// Signal is a mutable reactive value, the leaf node of the graph. A signal
// has subscribers but never sources.
//
// Reading through Get or With while a memo or effect is computing
// registers an edge from the signal to that computation. Writing through
// Set or Update stores unconditionally and marks every subscriber stale: a
// plain signal always propagates, the equality gate lives on Memo.
type Signal[T any] struct {
	base sourceNode

	mu    sync.RWMutex
	value T
}

// NewSignal creates a signal holding initial. If an owner is current, the
// signal is adopted by it and disposed with it.
func NewSignal[T any](initial T) *Signal[T] {
	s := &Signal[T]{
		base:  sourceNode{id: nextID()},
		value: initial,
	}
	if o := CurrentOwner(); o != nil {
		o.adopt(s)
	}
	return s
}

// Get returns a copy of the current value. If a computation is observing,
// an edge observer→signal is registered first.
func (s *Signal[T]) Get() T {
	s.checkDisposed()
	if frame := currentObserver(); frame != nil {
		frame.sub.recordRead(&s.base, frame)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// GetUntracked returns a copy of the current value without registering any
// edge. For code running outside a tracked context (logging, snapshotting)
// that must not pick up accidental subscriptions.
func (s *Signal[T]) GetUntracked() T {
	s.checkDisposed()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// With calls fn with the current value under the read lock, avoiding the
// copy Get makes. Tracking semantics match Get. fn must not write signals.
func (s *Signal[T]) With(fn func(v T)) {
	s.checkDisposed()
	if frame := currentObserver(); frame != nil {
		frame.sub.recordRead(&s.base, frame)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.value)
}

// WithUntracked is With without edge registration.
func (s *Signal[T]) WithUntracked(fn func(v T)) {
	s.checkDisposed()
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.value)
}

// Set stores value unconditionally and marks subscribers stale. Direct
// subscribers go Dirty, transitive ones Check; affected effects run before
// Set returns unless a batch is open or they were created Deferred.
func (s *Signal[T]) Set(value T) {
	s.checkDisposed()
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	s.propagate()
}

// Update mutates the value in place under the write lock. Equivalent to
// Set for propagation purposes.
func (s *Signal[T]) Update(fn func(v *T)) {
	s.checkDisposed()
	s.mu.Lock()
	fn(&s.value)
	s.mu.Unlock()
	s.propagate()
}

// Split returns the signal as a getter/setter pair, for callers that want
// to hand out read and write capabilities separately.
func (s *Signal[T]) Split() (get func() T, set func(T)) {
	return s.Get, s.Set
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

func (s *Signal[T]) propagate() {
	instrumentation.SignalWrite()
	nextGeneration()
	s.base.stale(stateDirty)
	runPendingEffects(false)
}

// disposeNode implements the owner disposal hook: the signal is flagged
// dead and stripped out of every surviving subscriber's source list.
func (s *Signal[T]) disposeNode() {
	if s.base.disposed.Swap(true) {
		return
	}
	s.base.detachAll()
}

func (s *Signal[T]) checkDisposed() {
	if s.base.disposed.Load() {
		panic(fmt.Errorf("%w: signal %d", ErrDisposedAccess, s.base.id))
	}
}
