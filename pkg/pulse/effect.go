package pulse

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/petermattis/goid"
)

// Cleanup is returned by an effect body to release whatever the run
// acquired. It is called before the effect re-runs and when the effect is
// disposed.
type Cleanup func()

// recursionWarnDepth is the number of simultaneously in-flight runs of
// one effect above which a diagnostic is logged. Short intentional
// recursion (an effect writing a signal it also reads) is legal, so this
// is a warning, not an error.
const recursionWarnDepth = 2

// Effect is a side-effecting subscriber: it has sources but no value and
// no subscribers of its own.
//
// An effect runs once at creation, establishing its initial source set,
// and re-runs when a source changes. A write enqueues every effect it
// dirtied on the writing goroutine's pending queue and drains the queue
// before returning, after the whole marking walk — an immediate effect
// (the default) still runs synchronously inside the write, but never
// against a half-marked graph. An effect body that writes a signal it
// also reads re-runs through the queue until it converges; the run
// counters below keep overlapping runs (nested drains, other goroutines)
// from corrupting the dependency list by letting only the latest run own
// it. Deferred effects stay queued until the enclosing batch ends or
// Flush is called, and run at most once per flush no matter how many
// sources changed.
type Effect struct {
	base subscriberNode

	fn      func() Cleanup
	cleanup Cleanup

	owner    *Owner
	name     string
	deferred bool

	// Re-entrancy bookkeeping. runCountStart is the id handed to the
	// most recently started run, runDoneCount the number of completed
	// runs, runDoneMax the highest completed run id, lastRunGID the
	// goroutine of the most recently started run. A run may rebuild the
	// dependency list only while runDoneMax < its own id and it is still
	// the run lastRunGID points at; everything resets to zero once every
	// started run has completed.
	runMu         sync.Mutex
	runCountStart uint64
	runDoneCount  uint64
	runDoneMax    uint64
	lastRunGID    int64
}

// EffectOption configures an Effect at creation.
type EffectOption interface {
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// Deferred makes the effect run at flush points (end of the enclosing
// batch, or an explicit Flush) instead of synchronously inside the write
// that dirtied it. Multiple writes between flushes coalesce into one run.
func Deferred() EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.deferred = true
	})
}

// EffectName names the effect for diagnostics (the recursion warning and
// debug logging). Purely observational.
func EffectName(name string) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.name = name
	})
}

// NewEffect registers fn as an effect and runs it once immediately. If an
// owner is current the effect is adopted by it: disposal detaches it, and
// a paused owner keeps it from running.
func NewEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		base:  subscriberNode{id: nextID(), st: stateDirty},
		fn:    fn,
		owner: CurrentOwner(),
	}
	for _, opt := range opts {
		opt.applyEffect(e)
	}
	if e.owner != nil {
		e.owner.adoptEffect(e)
	}
	e.run()
	return e
}

// OnMount runs fn once, immediately, with dependency tracking active but
// no re-run scheduling value: it is NewEffect for bodies with no cleanup
// that should behave like one-shot setup.
func OnMount(fn func()) {
	NewEffect(func() Cleanup {
		Untracked(fn)
		return nil
	})
}

// OnUpdate creates an effect that skips its callback on the first run.
// deps is always called (to establish the tracked reads); callback only
// runs on re-runs, when those reads changed.
func OnUpdate(deps func(), callback func()) *Effect {
	first := true
	return NewEffect(func() Cleanup {
		deps()
		if first {
			first = false
			return nil
		}
		callback()
		return nil
	})
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.base.id
}

// Dispose detaches the effect from every source and runs its pending
// cleanup. A run already executing is not preempted; it completes, and
// the disposed flag keeps any further update from reaching the body.
func (e *Effect) Dispose() {
	if e.base.disposed.Swap(true) {
		return
	}
	if c := e.cleanup; c != nil {
		e.cleanup = nil
		c()
	}
	e.base.clearSources(e)
}

// disposeNode implements the owner disposal hook.
func (e *Effect) disposeNode() { e.Dispose() }

// markStale implements subscriber. The effect is only enqueued, never run
// here: marking happens mid-walk, before the write has reached the
// source's remaining subscribers, and running would expose a half-marked
// graph. The triggering write drains the queue once the walk completes.
// Already-stale effects are not re-enqueued.
func (e *Effect) markStale(s nodeState) {
	if e.base.disposed.Load() {
		return
	}
	raised, _ := e.base.raiseState(s)
	if !raised {
		return
	}
	scheduleEffect(e)
}

// updateIfNecessary settles the effect: a stateCheck effect first settles
// its sources, and only a genuine upstream change reaches the body. A
// paused owner leaves the effect stale so Resume can pick it back up.
func (e *Effect) updateIfNecessary() {
	if e.base.disposed.Load() {
		return
	}
	if e.owner != nil && e.owner.suspended() {
		return
	}
	switch e.base.state() {
	case stateClean:
		return
	case stateCheck:
		e.base.settleSources()
	}
	if e.base.state() == stateDirty {
		e.run()
		return
	}
	e.base.settleClean()
}

// run executes the effect body as the active observer.
func (e *Effect) run() {
	if e.base.disposed.Load() {
		return
	}
	if e.owner != nil && e.owner.suspended() {
		return
	}

	gid := goid.Get()
	e.runMu.Lock()
	e.runCountStart++
	runID := e.runCountStart
	e.lastRunGID = gid
	inFlight := e.runCountStart - e.runDoneCount
	// Only the current (highest) run may rebuild the dependency list: a
	// run is entitled to it while no later run has finished and it is
	// still on the goroutine recorded as running the latest run.
	rebuild := e.runDoneMax < runID && e.lastRunGID == gid
	e.runMu.Unlock()

	if inFlight > recursionWarnDepth {
		slog.Warn("pulse: effect re-entered beyond warn depth",
			"effect", e.base.id, "name", e.name, "inFlight", inFlight)
	}

	if rebuild {
		if c := e.cleanup; c != nil {
			e.cleanup = nil
			c()
		}
		e.base.clearSources(e)
	}

	// Clean before the body runs, so a self-write inside the body marks
	// the effect stale again and triggers the next run.
	e.base.setState(stateClean)

	frame := observerFrame{sub: e, runID: runID, gid: gid}
	restore := pushObserver(&frame)

	instrumentation.EffectRun(func() {
		defer func() {
			restore()
			e.runMu.Lock()
			e.runDoneCount++
			if runID > e.runDoneMax {
				e.runDoneMax = runID
			}
			if e.runCountStart == e.runDoneCount {
				e.runCountStart, e.runDoneCount, e.runDoneMax = 0, 0, 0
			}
			e.runMu.Unlock()
		}()

		cleanup := e.fn()

		e.runMu.Lock()
		latest := e.runCountStart == runID
		e.runMu.Unlock()
		if latest {
			e.cleanup = cleanup
		} else if cleanup != nil {
			// A later run superseded this one mid-flight; its cleanup
			// is already stored, ours is stale and runs right away.
			cleanup()
		}
	})
}

// subscriber plumbing.

func (e *Effect) subscriberID() uint64 { return e.base.id }

// recordRead registers a source read, but only for the run the frame
// belongs to: a superseded run (a later run already finished) or a run
// overtaken on another goroutine must not touch the dependency list.
func (e *Effect) recordRead(src *sourceNode, frame *observerFrame) {
	e.runMu.Lock()
	stale := e.runDoneMax >= frame.runID || e.lastRunGID != frame.gid
	e.runMu.Unlock()
	if stale {
		return
	}
	e.base.addSource(e, src)
}

func (e *Effect) rebindSourceSlot(idx, slot int) { e.base.rebindSourceSlot(idx, slot) }

func (e *Effect) dropSource(src *sourceNode) { e.base.dropSource(src) }

func (e *Effect) String() string {
	if e.name != "" {
		return fmt.Sprintf("effect %d (%s)", e.base.id, e.name)
	}
	return fmt.Sprintf("effect %d", e.base.id)
}
