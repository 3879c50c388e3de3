package pulse

import "errors"

// ErrDisposedAccess is the panic value (wrapped with node details) raised
// when a signal, memo, or effect is used after its owner was disposed, or
// when a disposed owner is asked to adopt new nodes or cleanups.
//
// Stale access is a correctness bug in the calling layer, so the runtime
// fails loudly instead of returning a default value.
var ErrDisposedAccess = errors.New("pulse: node used after dispose")

// ErrNoOwner is the panic value raised when an operation that requires an
// ambient owner (ProvideContext, OnCleanup) runs with no owner current.
var ErrNoOwner = errors.New("pulse: no current owner")

// ErrMissingContext is the panic value raised by ExpectContext when no
// provider for the requested type exists up the owner chain.
var ErrMissingContext = errors.New("pulse: missing context")

// ErrGraphCorrupt signals a violated edge-symmetry invariant between a
// source's subscriber slot and a subscriber's source slot. It is only
// raised by debug assertions (DebugMode); seeing it means a runtime bug,
// not a usage error.
var ErrGraphCorrupt = errors.New("pulse: dependency graph corrupt")
