package streamgraph

// Name is a type alias for component and channel names, encouraging named
// constants over inline string literals at call sites.
type Name = string

// OutputKind describes how many values an output channel emits per
// invocation. It must be pure and stable for a given component/channel
// pair — the graph consults it once at AddDependency time and the
// compiled runner relies on it never changing afterward.
type OutputKind int

const (
	// OutputNone means no listeners can be wired to this channel; the
	// graph rejects any AddDependency naming it as a source.
	OutputNone OutputKind = iota
	// OutputSingle means exactly one value is emitted per invocation, or
	// zero if the component declines to emit (see the starvation rules
	// in inputtree.go).
	OutputSingle
	// OutputMultiple means zero or more values may be emitted per
	// invocation, each assigned a fresh, monotonically increasing branch
	// ordinal in submission order.
	OutputMultiple
)

func (k OutputKind) String() string {
	switch k {
	case OutputNone:
		return "none"
	case OutputSingle:
		return "single"
	case OutputMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// InputKindTag discriminates the variants of InputKind.
type InputKindTag int

const (
	// InputPrimary is a single, anonymous input.
	InputPrimary InputKindTag = iota
	// InputNamed means each named slot is filled independently; the
	// component runs once per top-level invocation, at its aggregation
	// root, once every root-level slot is filled (see inputtree.go). A
	// slot fed from below a Multiple branch point is not expanded into one
	// run per combination: its values are reachable only through the
	// InputTree's Children, not through Get.
	InputNamed
	// InputMinTree means the component receives an InputTree rooted at
	// the earliest branch point that touches any of its inputs.
	InputMinTree
	// InputFullTree means the component receives an InputTree rooted at
	// the top of the invocation.
	InputFullTree
)

// InputKind is a component's declaration of the shape of input it expects.
// Construct one with InputsPrimary, InputsNamed, InputsMinTree, or
// InputsFullTree.
type InputKind struct {
	Tag   InputKindTag
	Slots []Name // empty for InputPrimary
}

// InputsPrimary declares a single anonymous input.
func InputsPrimary() InputKind { return InputKind{Tag: InputPrimary} }

// InputsNamed declares independently-filled named slots; the component
// runs once per top-level invocation (see InputNamed).
func InputsNamed(slots ...Name) InputKind {
	return InputKind{Tag: InputNamed, Slots: append([]Name(nil), slots...)}
}

// InputsMinTree declares named slots aggregated under an InputTree rooted
// at the earliest branch point touching any of them.
func InputsMinTree(slots ...Name) InputKind {
	return InputKind{Tag: InputMinTree, Slots: append([]Name(nil), slots...)}
}

// InputsFullTree declares named slots aggregated under an InputTree rooted
// at the top of the invocation.
func InputsFullTree(slots ...Name) InputKind {
	return InputKind{Tag: InputFullTree, Slots: append([]Name(nil), slots...)}
}

// IsTree reports whether this input kind requires an aggregation tree
// (MinTree or FullTree) as opposed to a flat Named join.
func (k InputKind) IsTree() bool {
	return k.Tag == InputMinTree || k.Tag == InputFullTree
}

// Component is a user-defined processing node. Every method must be safe
// to call from multiple goroutines concurrently; the engine never
// serializes calls to a single component beyond the per-component
// aggregation-tree mutex described in inputtree.go, which guards only the
// engine's own bookkeeping, not the component's body.
type Component interface {
	// Inputs returns this component's input-kind declaration. Called
	// during graph validation and compilation; must be stable for the
	// lifetime of the component.
	Inputs() InputKind

	// CanTake reports whether this component accepts a dynamic extra
	// named input beyond its declared Inputs().Slots. Components with no
	// dynamic inputs should simply return false.
	CanTake(name Name) bool

	// OutputKind returns the kind of the named output channel. Must be
	// pure and stable.
	OutputKind(name Name) OutputKind

	// Run is invoked once per scheduled input set. It reads its inputs
	// and submits outputs through ctx. Run may return before all of its
	// outputs are emitted by calling ctx.Defer to schedule a
	// continuation on the worker pool; the invocation isn't considered
	// finished until every deferred continuation also returns without
	// deferring further.
	Run(ctx *Context) error

	// Initialize performs one-time setup after the component has been
	// assigned an id in the graph. Most components have nothing to do
	// here; it exists for components that need to wire additional hidden
	// components into the graph at construction time.
	Initialize(g *Graph, self ComponentID)
}

// ComponentFactory constructs a boxed Component from configuration. It is
// the capability object behind the open, string-keyed registry in
// registry.go, mirroring an open, host-extensible plugin table.
type ComponentFactory interface {
	Build(name Name) (Component, error)
}

// ComponentFactoryFunc adapts a plain function to ComponentFactory.
type ComponentFactoryFunc func(name Name) (Component, error)

// Build implements ComponentFactory.
func (f ComponentFactoryFunc) Build(name Name) (Component, error) { return f(name) }

// BaseComponent provides a no-op Initialize and CanTake for components
// that don't need them, the way embedding a default implementation keeps
// leaf components terse. Embed it and override what you need.
type BaseComponent struct{}

// CanTake always returns false; override it to accept dynamic inputs.
func (BaseComponent) CanTake(Name) bool { return false }

// Initialize is a no-op; override it to wire hidden components at
// insertion time.
func (BaseComponent) Initialize(*Graph, ComponentID) {}
