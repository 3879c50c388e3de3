package pulse

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/petermattis/goid"
)

// observerFrame identifies one run of a subscriber while it executes its
// compute function. Signals and memos consult the current frame to record
// read edges. For effects the frame also carries the run id and goroutine
// id so a superseded or cross-goroutine run cannot keep appending sources
// (see Effect.recordRead).
type observerFrame struct {
	sub   subscriber
	runID uint64
	gid   int64
}

// trackingContext holds the ambient reactive state for one goroutine: the
// owner adopting new nodes, the observer recording read edges, the batch
// depth, and the pending effect queue.
type trackingContext struct {
	currentOwner *Owner

	// observer is nil outside of any compute run and inside Untracked.
	observer *observerFrame

	// batchDepth tracks nested Batch() calls. While > 0, effects stay
	// queued instead of running at the end of each write.
	batchDepth int

	// pending is the ordered effect queue for this goroutine; pendingIDs
	// deduplicates so an effect runs at most once per flush no matter how
	// many of its sources changed.
	pending    []*Effect
	pendingIDs mapset.Set[uint64]

	// flushing guards against re-entrant flushes: a write performed
	// inside an effect body only appends to the queue, and the outer
	// flush loop picks the work up.
	flushing bool
}

// trackingContexts stores per-goroutine tracking contexts, keyed by
// goroutine id (petermattis/goid, no stack parsing).
var trackingContexts sync.Map

func getTrackingContext() *trackingContext {
	gid := goid.Get()
	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*trackingContext)
	}
	ctx := &trackingContext{pendingIDs: mapset.NewThreadUnsafeSet[uint64]()}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// currentObserver returns the observer frame for the current goroutine,
// or nil when no tracked computation is running.
func currentObserver() *observerFrame {
	return getTrackingContext().observer
}

// pushObserver installs a new observer frame and returns a restore
// function. Callers must invoke restore via defer so a panicking compute
// cannot corrupt its caller's dependency tracking.
func pushObserver(f *observerFrame) func() {
	ctx := getTrackingContext()
	prev := ctx.observer
	ctx.observer = f
	return func() { ctx.observer = prev }
}

// CurrentOwner returns the owner that adopts newly created nodes on this
// goroutine, or nil if none is current.
func CurrentOwner() *Owner {
	return getTrackingContext().currentOwner
}

func setCurrentOwner(o *Owner) *Owner {
	ctx := getTrackingContext()
	prev := ctx.currentOwner
	ctx.currentOwner = o
	return prev
}

// WithOwner runs fn with owner current, restoring the previous owner even
// if fn panics. Use it to hand ownership across goroutine boundaries:
//
//	go func() {
//	    pulse.WithOwner(parent, func() {
//	        sig := pulse.NewSignal(0) // belongs to parent
//	        _ = sig
//	    })
//	}()
func WithOwner(owner *Owner, fn func()) {
	prev := setCurrentOwner(owner)
	defer setCurrentOwner(prev)
	fn()
}

// Untracked runs fn with dependency tracking suspended: reads inside fn do
// not subscribe the current observer.
func Untracked(fn func()) {
	restore := pushObserver(nil)
	defer restore()
	fn()
}

// UntrackedGet reads a signal without creating a dependency. Convenience
// alias for s.GetUntracked.
func UntrackedGet[T any](s *Signal[T]) T {
	return s.GetUntracked()
}

// scheduleEffect enqueues e on the current goroutine's pending queue.
// Deduplicated by node ID; enqueue order is preserved for the flush.
func scheduleEffect(e *Effect) {
	ctx := getTrackingContext()
	if ctx.pendingIDs.Add(e.base.id) {
		ctx.pending = append(ctx.pending, e)
	}
}

// runPendingEffects drains the queue, running each effect at most once.
// Deferred effects are held back unless force is set (batch end, Flush).
// No-op while batching or when called re-entrantly from an effect body.
func runPendingEffects(force bool) {
	ctx := getTrackingContext()
	if ctx.batchDepth > 0 || ctx.flushing || len(ctx.pending) == 0 {
		return
	}
	ctx.flushing = true
	defer func() { ctx.flushing = false }()

	instrumentation.Flush(func() {
		var held []*Effect
		for len(ctx.pending) > 0 {
			e := ctx.pending[0]
			ctx.pending = ctx.pending[1:]
			if e.deferred && !force {
				held = append(held, e)
				continue
			}
			ctx.pendingIDs.Remove(e.base.id)
			e.updateIfNecessary()
		}
		ctx.pending = append(ctx.pending, held...)
	})
}

// Flush runs every pending effect on this goroutine, including deferred
// ones, in enqueue order. It is the explicit "run effects now" point for
// code that writes outside a batch but defers its effects.
func Flush() {
	runPendingEffects(true)
}
