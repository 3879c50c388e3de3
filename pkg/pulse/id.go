package pulse

import "sync/atomic"

// globalIDCounter is the source of unique IDs for all reactive primitives
// and owners. Atomic so ID generation never needs a lock.
var globalIDCounter uint64

// nextID returns the next unique node ID. IDs are monotonically increasing
// and never reused.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}

// globalGeneration counts value-changing writes across the whole graph.
// Memos stamp their updatedAt with it when a recomputation produces a
// genuinely different value.
var globalGeneration uint64

// nextGeneration advances the write generation.
func nextGeneration() uint64 {
	return atomic.AddUint64(&globalGeneration, 1)
}
