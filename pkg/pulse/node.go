package pulse

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DebugMode enables expensive invariant checking (edge symmetry) and debug
// logging throughout the package. Set it at startup; it must not be toggled
// while the graph is in use.
var DebugMode bool

// nodeState is the staleness of a subscriber between updates.
//
// Terminal state between updates is always stateClean. A write marks its
// direct subscribers stateDirty and their transitive subscribers
// stateCheck; stateCheck nodes settle lazily by asking their sources
// whether any of them actually changed value.
type nodeState int32

const (
	stateClean nodeState = iota // value is current, nothing to do
	stateCheck                  // an upstream source may have changed; verify before recomputing
	stateDirty                  // a direct source changed; must recompute
)

func (s nodeState) String() string {
	switch s {
	case stateClean:
		return "clean"
	case stateCheck:
		return "check"
	case stateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("nodeState(%d)", int32(s))
	}
}

// subscriber is the consumer half of a graph edge: something that depends
// on sources and carries a staleness state. Implemented by Memo[T] and
// Effect.
type subscriber interface {
	// subscriberID returns the node's unique ID, used for queue
	// deduplication and diagnostics.
	subscriberID() uint64

	// markStale raises the staleness to at least s. Raising out of
	// stateClean propagates stateCheck to the subscriber's own
	// subscribers (when it has any) and enqueues effects.
	markStale(s nodeState)

	// updateIfNecessary settles the node back to stateClean, recomputing
	// only if a source genuinely changed value.
	updateIfNecessary()

	// recordRead registers a source read during this subscriber's run.
	recordRead(src *sourceNode, frame *observerFrame)

	// rebindSourceSlot updates sourceSlots[idx] after the source moved
	// this subscriber's entry to a new slot.
	rebindSourceSlot(idx, slot int)

	// dropSource removes a disposed source from the source list without
	// touching the (already gone) source side of the edge.
	dropSource(src *sourceNode)
}

// subEntry is one slot in a source's subscriber list. idx is the position
// the owning source holds inside sub's source list; the pair of
// back-indices is what makes detachment O(1) in both directions.
type subEntry struct {
	sub subscriber
	idx int
}

// sourceNode is the producer half of a graph edge: a slot-indexed,
// insertion-ordered subscriber list. It is embedded (as a named field) in
// Signal[T] and Memo[T], and the &node address is the source's identity in
// every subscriber's source list.
type sourceNode struct {
	id uint64

	// settle is non-nil for sources that are themselves derived (memos):
	// it settles the node's own staleness before its value is trusted.
	settle func()

	mu   sync.Mutex
	subs []subEntry

	disposed atomic.Bool
}

// addSubscriber appends sub to the subscriber list and returns the slot it
// occupies. idx is the position this source holds in sub's source list,
// kept so list compactions can fix back-references.
func (b *sourceNode) addSubscriber(sub subscriber, idx int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subEntry{sub: sub, idx: idx})
	return len(b.subs) - 1
}

// removeSubscriberAt detaches the subscriber at slot by swap-remove and
// rebinds the moved entry's slot on its subscriber side. The expected
// subscriber is passed so debug builds can verify edge symmetry.
func (b *sourceNode) removeSubscriberAt(slot int, expect subscriber) {
	b.mu.Lock()
	if slot >= len(b.subs) || b.subs[slot].sub != expect {
		if DebugMode {
			b.mu.Unlock()
			panic(fmt.Errorf("%w: source %d slot %d does not hold subscriber %d",
				ErrGraphCorrupt, b.id, slot, expect.subscriberID()))
		}
		// Slot mismatch outside debug builds: fall back to a scan so a
		// racing disposal cannot detach the wrong edge.
		slot = -1
		for i, e := range b.subs {
			if e.sub == expect {
				slot = i
				break
			}
		}
		if slot < 0 {
			b.mu.Unlock()
			return
		}
	}
	last := len(b.subs) - 1
	moved := b.subs[last]
	b.subs[slot] = moved
	b.subs[last] = subEntry{}
	b.subs = b.subs[:last]
	b.mu.Unlock()

	if slot != last {
		moved.sub.rebindSourceSlot(moved.idx, slot)
	}
}

// rebindSubscriberIndex updates the stored back-index after the subscriber
// at slot compacted its own source list.
func (b *sourceNode) rebindSubscriberIndex(slot, idx int) {
	b.mu.Lock()
	if slot < len(b.subs) {
		b.subs[slot].idx = idx
	}
	b.mu.Unlock()
}

// copySubscribers snapshots the subscriber list so staleness can propagate
// without holding the lock (copy-before-notify).
func (b *sourceNode) copySubscribers() []subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return nil
	}
	out := make([]subscriber, len(b.subs))
	for i, e := range b.subs {
		out[i] = e.sub
	}
	return out
}

// stale marks every current subscriber, in slot order.
func (b *sourceNode) stale(s nodeState) {
	for _, sub := range b.copySubscribers() {
		sub.markStale(s)
	}
}

// detachAll is the disposal path: strip this source out of every remaining
// subscriber's source list so later reads never touch a dead node.
func (b *sourceNode) detachAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, e := range subs {
		e.sub.dropSource(b)
	}
}

// subscriberNode is the consumer half of the edge bookkeeping: the source
// list plus the slot this node occupies in each source's subscriber list.
// Embedded (as a named field) in Memo[T] and Effect.
//
// Invariant (checked in DebugMode): sources[i] holds this node at
// subscriber-list slot sourceSlots[i], and that slot's back-index is i.
type subscriberNode struct {
	id uint64

	mu          sync.Mutex
	st          nodeState
	sources     []*sourceNode
	sourceSlots []int

	disposed atomic.Bool
}

func (b *subscriberNode) state() nodeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

func (b *subscriberNode) setState(s nodeState) {
	b.mu.Lock()
	b.st = s
	b.mu.Unlock()
}

// settleClean lowers stateCheck back to stateClean after the settling walk
// found no genuine change. A concurrent raise to stateDirty wins: only
// stateCheck is lowered.
func (b *subscriberNode) settleClean() {
	b.mu.Lock()
	if b.st == stateCheck {
		b.st = stateClean
	}
	b.mu.Unlock()
}

// raiseState lifts the staleness to at least s. It reports whether the
// state rose at all and whether the node left stateClean with this call —
// the only transition that should propagate stateCheck downstream
// (idempotence under repeated writes in one pass).
func (b *subscriberNode) raiseState(s nodeState) (raised, fromClean bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st >= s {
		return false, false
	}
	fromClean = b.st == stateClean
	b.st = s
	return true, fromClean
}

// addSource appends src unless it is already present this run, then
// completes the source side of the edge.
func (b *subscriberNode) addSource(self subscriber, src *sourceNode) {
	b.mu.Lock()
	for _, s := range b.sources {
		if s == src {
			b.mu.Unlock()
			return
		}
	}
	idx := len(b.sources)
	b.sources = append(b.sources, src)
	b.sourceSlots = append(b.sourceSlots, -1)
	b.mu.Unlock()

	slot := src.addSubscriber(self, idx)

	b.mu.Lock()
	if idx < len(b.sources) && b.sources[idx] == src {
		b.sourceSlots[idx] = slot
	}
	b.mu.Unlock()
}

// copySources snapshots the source list for the settling walk.
func (b *subscriberNode) copySources() []*sourceNode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sources) == 0 {
		return nil
	}
	out := make([]*sourceNode, len(b.sources))
	copy(out, b.sources)
	return out
}

// clearSources detaches every edge in preparation for a fresh run. The
// dependency list is rebuilt from whatever the run actually reads.
func (b *subscriberNode) clearSources(self subscriber) {
	b.mu.Lock()
	sources := b.sources
	slots := b.sourceSlots
	b.sources = nil
	b.sourceSlots = nil
	b.mu.Unlock()

	for i, src := range sources {
		if slots[i] >= 0 {
			src.removeSubscriberAt(slots[i], self)
		}
	}
}

func (b *subscriberNode) rebindSourceSlot(idx, slot int) {
	b.mu.Lock()
	if idx < len(b.sourceSlots) {
		b.sourceSlots[idx] = slot
	}
	b.mu.Unlock()
}

// dropSource removes a disposed source. The removed entry is swap-filled
// with the last one, whose slot back-index on the source side must then be
// rebound.
func (b *subscriberNode) dropSource(src *sourceNode) {
	b.mu.Lock()
	found := -1
	for i, s := range b.sources {
		if s == src {
			found = i
			break
		}
	}
	if found < 0 {
		b.mu.Unlock()
		return
	}
	last := len(b.sources) - 1
	var movedSrc *sourceNode
	movedSlot := -1
	if found != last {
		b.sources[found] = b.sources[last]
		b.sourceSlots[found] = b.sourceSlots[last]
		movedSrc = b.sources[found]
		movedSlot = b.sourceSlots[found]
	}
	b.sources[last] = nil
	b.sources = b.sources[:last]
	b.sourceSlots = b.sourceSlots[:last]
	b.mu.Unlock()

	if movedSrc != nil && movedSlot >= 0 {
		movedSrc.rebindSubscriberIndex(movedSlot, found)
	}
}

// settleSources settles derived sources until one of them dirties this
// node. Used by the stateCheck path of updateIfNecessary: if no source
// genuinely changed value, the caller transitions back to stateClean
// without recomputing (the diamond short-circuit).
func (b *subscriberNode) settleSources() {
	for _, src := range b.copySources() {
		if src.settle != nil {
			src.settle()
		}
		if b.state() == stateDirty {
			return
		}
	}
}
