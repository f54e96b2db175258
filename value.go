package streamgraph

import (
	"fmt"
	"reflect"
)

// Value is an immutable, shareable, type-erased payload carried on a
// pipeline channel. Ownership is shared: multiple readers may hold the
// same Value concurrently, and its lifetime extends until the last reader
// releases it (ordinary Go garbage collection; there is no explicit
// refcounting on the payload itself — only on the aggregation tree nodes
// that reference it, see inputtree.go).
//
// Value deliberately exposes no way to recover T without knowing it in
// advance; use As[T] to downcast. Components that need to mutate their
// payload across invocations must wrap it in their own mutex and embed
// that in the boxed value, matching the "mutex-wrapped payloads" case
// called out in the data model.
type Value interface {
	// TypeName returns a short, stable, debug-friendly name for the
	// concrete payload type. It is not guaranteed to round-trip through
	// reflection and must not be used for type comparisons; use As[T].
	TypeName() string

	// Clone returns a new Value wrapping a deep copy of the same concrete
	// type. Payloads that implement Cloner clone themselves; everything
	// else is copied by value (a shallow Go assignment), which is a deep
	// copy for any type without reference semantics.
	Clone() Value

	// unwrap returns the boxed payload as an `any` for internal use by
	// As and Field. It is unexported so external packages cannot bypass
	// the typed accessors.
	unwrap() any
}

// Cloner is implemented by payload types that need custom deep-copy
// semantics (slices, maps, or anything else with reference semantics).
// Types that don't implement Cloner are copied by plain assignment when
// Value.Clone is called.
type Cloner[T any] interface {
	Clone() T
}

// Fielder is implemented by payload types that expose named sub-fields for
// reflection-driven external sinks (for example a network-table exporter
// that unpacks a struct by field name without knowing its concrete type).
// Implementations return ok=false for unknown names rather than panicking.
type Fielder interface {
	Field(name string) (v any, ok bool)
	FieldNames() []string
}

// TypeMismatchError is returned by As when a Value's concrete type does not
// match the requested type. It carries the expected type name so callers
// (and the engine's own error-handling policy, see errors.go) can report a
// useful diagnostic without a second reflection pass.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("value type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

type boxedValue[T any] struct {
	name string
	val  T
}

// NewValue wraps v as a Value. name is a short debug label (it need not be
// unique); it shows up in TypeName(), and so in DebugComponent's log
// output.
func NewValue[T any](name string, v T) Value {
	return boxedValue[T]{name: name, val: v}
}

func (b boxedValue[T]) TypeName() string {
	if b.name != "" {
		return b.name
	}
	return reflect.TypeOf(b.val).String()
}

func (b boxedValue[T]) Clone() Value {
	if c, ok := any(b.val).(Cloner[T]); ok {
		return boxedValue[T]{name: b.name, val: c.Clone()}
	}
	return b
}

func (b boxedValue[T]) unwrap() any {
	return b.val
}

// As downcasts v to T, returning a TypeMismatchError if the concrete
// payload isn't a T. This is the only way to recover a typed value from a
// Value; it never panics.
func As[T any](v Value) (T, error) {
	var zero T
	if v == nil {
		return zero, &TypeMismatchError{Expected: typeName[T](), Actual: "<nil>"}
	}
	boxed, ok := v.unwrap().(T)
	if !ok {
		return zero, &TypeMismatchError{Expected: typeName[T](), Actual: v.TypeName()}
	}
	return boxed, nil
}

// MustAs is As with a panic instead of an error, for call sites (mostly
// tests and component constructors dealing with their own known-good
// values) that have already established the type invariant another way.
func MustAs[T any](v Value) T {
	val, err := As[T](v)
	if err != nil {
		panic(err)
	}
	return val
}

// Field reflects a single named sub-field out of v, returning it as a
// Value. It returns ok=false if the payload doesn't implement Fielder or
// doesn't have a field by that name. This is the only place the engine
// uses reflection-adjacent dynamic dispatch over payload shape; it never
// inspects unexported struct fields directly.
func Field(v Value, name string) (Value, bool) {
	f, ok := v.unwrap().(Fielder)
	if !ok {
		return nil, false
	}
	raw, ok := f.Field(name)
	if !ok {
		return nil, false
	}
	return NewValue(name, raw), true
}

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	return t.String()
}

// FinishChannel is the one reserved channel name the engine itself
// defines. A component may be wired as a listener on another component's
// FinishChannel (Endpoint{Channel: FinishChannel}) to observe completion;
// the engine — never the component itself — submits finishValue there
// once the upstream invocation (and all of its Defer continuations) has
// returned. Any other channel beginning with "$" is reserved but
// undefined; Context.Submit on one is a logged no-op.
const FinishChannel Name = "$finish"

// finishValue is the unit-typed payload carried on FinishChannel.
var finishValue = NewValue[struct{}](FinishChannel, struct{}{})
