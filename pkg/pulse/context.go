package pulse

import (
	"fmt"
	"reflect"
	"runtime"
)

// typeKey returns the context map key for T. The typed Provide/Use/Take
// API is keyed by type identity, so one value of each type per owner.
func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// ProvideContext stores value on the current owner, keyed by its type.
// Descendant scopes see it through UseContext; a second ProvideContext of
// the same type in the same owner replaces the first, shadowing for that
// owner and its descendants but never for ancestors or siblings.
// Panics with ErrNoOwner when no owner is current.
func ProvideContext[T any](value T) {
	o := CurrentOwner()
	if o == nil {
		panic(ErrNoOwner)
	}
	o.provide(typeKey[T](), value)
}

// UseContext searches the current owner and then its ancestors for a
// value of type T. Returns the innermost provided value, or the zero
// value and false when no provider exists. O(depth of the owner tree).
func UseContext[T any]() (T, bool) {
	var zero T
	o := CurrentOwner()
	if o == nil {
		return zero, false
	}
	v, ok := o.lookup(typeKey[T]())
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// TakeContext is UseContext for values that must not be shared: the entry
// is removed from the owner where it was found, so no other caller
// observes it afterwards.
func TakeContext[T any]() (T, bool) {
	var zero T
	o := CurrentOwner()
	if o == nil {
		return zero, false
	}
	v, ok := o.take(typeKey[T]())
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// ExpectContext is UseContext that panics, naming the missing type and
// the caller, when no provider exists. Use it for values the surrounding
// code cannot function without.
func ExpectContext[T any]() T {
	v, ok := UseContext[T]()
	if !ok {
		key := typeKey[T]()
		if _, file, line, okc := runtime.Caller(1); okc {
			panic(fmt.Errorf("%w: no %v provided (wanted at %s:%d)", ErrMissingContext, key, file, line))
		}
		panic(fmt.Errorf("%w: no %v provided", ErrMissingContext, key))
	}
	return v
}

// Context is the provider-object variant of context propagation, for code
// that wants several independent values of the same underlying type. Each
// Context instance is its own key; a Context carries a default returned
// by Use when no provider is in scope.
type Context[T any] struct {
	defaultValue T
}

// CreateContext creates a context object with the given default value.
func CreateContext[T any](defaultValue T) *Context[T] {
	return &Context[T]{defaultValue: defaultValue}
}

// Provide runs fn in a fresh child scope that carries value for this
// context. The scope is disposed when fn returns.
func (c *Context[T]) Provide(value T, fn func()) {
	o := NewOwner(CurrentOwner())
	defer o.Dispose()
	o.provide(c, value)
	WithOwner(o, fn)
}

// ProvideHere stores value for this context on the current owner, without
// opening a new scope. Panics with ErrNoOwner when no owner is current.
func (c *Context[T]) ProvideHere(value T) {
	o := CurrentOwner()
	if o == nil {
		panic(ErrNoOwner)
	}
	o.provide(c, value)
}

// Use returns the value from the nearest providing scope, or the
// context's default.
func (c *Context[T]) Use() T {
	o := CurrentOwner()
	if o == nil {
		return c.defaultValue
	}
	if v, ok := o.lookup(c); ok {
		return v.(T)
	}
	return c.defaultValue
}

// Default returns the context's default value.
func (c *Context[T]) Default() T {
	return c.defaultValue
}
