package pulse

import "log/slog"

// Batch groups multiple writes into a single effect-notification phase.
// Writes inside fn mark subscribers stale as usual, but affected effects
// — immediate and deferred alike — are collected on the pending queue,
// deduplicated by node ID, and run once when the outermost batch
// completes, in enqueue order, seeing the final values.
//
// Batches nest; only the outermost completion flushes.
//
//	pulse.Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
//	// an effect reading both ran once, not twice
func Batch(fn func()) {
	ctx := getTrackingContext()
	ctx.batchDepth++
	defer func() {
		ctx.batchDepth--
		if ctx.batchDepth == 0 {
			runPendingEffects(true)
		}
	}()
	fn()
}

// Tx is Batch under the name the write-transaction callers use.
func Tx(fn func()) {
	Batch(fn)
}

// TxNamed is Batch with a name logged in debug mode, for tracing which
// transaction triggered a flush.
func TxNamed(name string, fn func()) {
	if DebugMode {
		slog.Debug("pulse: tx start", "name", name)
		defer slog.Debug("pulse: tx end", "name", name)
	}
	Batch(fn)
}
