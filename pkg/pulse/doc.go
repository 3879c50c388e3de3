// Package pulse provides a fine-grained reactive dependency-tracking runtime.
//
// The graph has three kinds of nodes: signals (mutable leaf values), memos
// (cached derived computations), and effects (side-effecting subscribers).
// Dependencies are tracked automatically at read time: reading a signal or
// memo while a memo or effect is computing subscribes that computation to
// the value it read. Dependency lists are rebuilt on every run, so
// conditional reads produce dynamic dependencies.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := pulse.NewSignal(0)
//	value := count.Get()  // read (subscribes the current observer)
//	count.Set(5)          // write (marks subscribers stale)
//	count.Update(func(n *int) { *n++ })
//
// Memo[T] is a cached derived computation:
//
//	doubled := pulse.NewMemo(func() int { return count.Get() * 2 })
//	value := doubled.Get()  // recomputes only if a dependency changed value
//
// Effect runs side effects when dependencies change:
//
//	pulse.NewEffect(func() pulse.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
//
// # Staleness and Laziness
//
// Writes do not recompute anything. A write marks its direct subscribers
// Dirty and their transitive subscribers Check; the next read settles a
// Check node by asking its sources whether any of them actually changed
// value. A memo whose recomputation yields an equal value never notifies
// its own subscribers, so diamond-shaped graphs recompute each node at
// most once per write.
//
// # Ownership
//
// Owners form a disposal tree independent of the dependency graph. Every
// node created while an owner is current belongs to that owner; disposing
// the owner runs registered cleanups and detaches every owned node from
// the graph. Using a node after its owner was disposed panics with
// ErrDisposedAccess.
//
// # Batching
//
// Multiple writes can be batched so dependent effects run once:
//
//	pulse.Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})  // effects reading a or b run once, with final values
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The tracking context
// (current owner, current observer, pending effect queue) is
// per-goroutine, so spawning goroutines requires explicit propagation via
// WithOwner. Effect bodies execute synchronously on whichever goroutine
// triggered the write.
package pulse
