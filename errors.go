package streamgraph

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for failures that need no extra context beyond their
// message.
var (
	// ErrEmptyGraph is returned by Compile on a graph with no components.
	ErrEmptyGraph = errors.New("streamgraph: graph has no components")
	// ErrSelfLoop is returned by AddDependency when src and dst resolve
	// to the same component.
	ErrSelfLoop = errors.New("streamgraph: a component cannot depend on itself")
	// ErrIndexOutOfBounds describes addressing a component or slot by a
	// numeric index outside its valid range. No operation in this package
	// returns it; out-of-range ids surface as UnknownComponentError or
	// MissingEndpointError instead.
	ErrIndexOutOfBounds = errors.New("streamgraph: index out of bounds")
)

// UnknownComponentError is returned when a component is looked up by id or
// name and no such component exists (or it was removed).
type UnknownComponentError struct {
	ID   ComponentID
	Name Name
}

func (e *UnknownComponentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("streamgraph: unknown component %q", e.Name)
	}
	return fmt.Sprintf("streamgraph: unknown component %s", e.ID)
}

// DuplicateNameError is returned by Graph.AddNamed when the name is
// already registered, carrying the id of the existing component so the
// caller can decide how to reconcile.
type DuplicateNameError struct {
	Name     Name
	Existing ComponentID
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("streamgraph: duplicate component name %q (existing id %s)", e.Name, e.Existing)
}

// MissingEndpointError is returned by AddDependency when the source or
// destination component/channel doesn't resolve.
type MissingEndpointError struct {
	Side    string // "source" or "destination"
	Name    Name
	ID      ComponentID
	Channel Name
}

func (e *MissingEndpointError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("streamgraph: missing %s component %q", e.Side, e.Name)
	}
	return fmt.Sprintf("streamgraph: missing %s component %s", e.Side, e.ID)
}

// NoOutputChannelError is returned when the source channel's OutputKind is
// OutputNone (or the channel is unrecognized).
type NoOutputChannelError struct {
	Component Name
	Channel   Name
}

func (e *NoOutputChannelError) Error() string {
	return fmt.Sprintf("streamgraph: component %q has no output channel %q", e.Component, e.Channel)
}

// CannotAcceptInputError is returned when the destination can't accept
// input on the named channel, either by declaration or CanTake.
type CannotAcceptInputError struct {
	Component Name
	Channel   Name
}

func (e *CannotAcceptInputError) Error() string {
	return fmt.Sprintf("streamgraph: component %q can't take input on channel %q", e.Component, e.Channel)
}

// OverloadedInputError is returned when a destination's named slot already
// has a source and the destination's declared InputKind doesn't allow
// oversaturation (MinTree/FullTree slots may be oversaturated; Named/Primary
// may not).
type OverloadedInputError struct {
	Component Name
	Channel   Name
}

func (e *OverloadedInputError) Error() string {
	return fmt.Sprintf("streamgraph: component %q channel %q already has a source", e.Component, e.Channel)
}

// CycleError is returned by Compile when the graph's live components
// contain a cycle; Cycle lists every component left unsorted by the
// topological pass.
type CycleError struct {
	Cycle []ComponentID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("streamgraph: cycle detected: %v", e.Cycle)
}

// CrossedBranchesError is returned by Compile when a component's upstream
// branch points don't lie on a single total chain (see compile.go rule 2).
type CrossedBranchesError struct {
	Component ComponentID
	BranchOne ComponentID
	BranchTwo ComponentID
}

func (e *CrossedBranchesError) Error() string {
	return fmt.Sprintf("streamgraph: component %s has crossed branch ancestors %s and %s", e.Component, e.BranchOne, e.BranchTwo)
}

// TooManyRunningError is returned by Run when the concurrency bound passed
// in RunParams.MaxRunning is already met or exceeded.
type TooManyRunningError struct {
	Running int
	Max     int
}

func (e *TooManyRunningError) Error() string {
	return fmt.Sprintf("streamgraph: %d invocations already running (max %d)", e.Running, e.Max)
}

// ArgsMismatchError is returned by Run (or PackArgs) when the packed
// argument count doesn't match the entry component's declared input count.
type ArgsMismatchError struct {
	Expected int
	Given    int
}

func (e *ArgsMismatchError) Error() string {
	return fmt.Sprintf("streamgraph: argument count mismatch: expected %d, given %d", e.Expected, e.Given)
}

// MissingInputError is returned by PackArgs when a named slot has no
// corresponding entry in the supplied InputSpecifier.
type MissingInputError struct {
	Name Name
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("streamgraph: missing input %q", e.Name)
}

// ContextError wraps a failure with the component, run id, and channel it
// occurred on. The engine itself does not construct it: Context.Get and
// GetAs report a missing input or a type mismatch as a plain
// MissingInputError or TypeMismatchError, which a component may wrap in a
// ContextError itself.
type ContextError struct {
	Component Name
	RunID     RunID
	Channel   Name
	Err       error
	Timestamp time.Time
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("streamgraph: %s run=%s channel=%q: %v", e.Component, e.RunID, e.Channel, e.Err)
}

func (e *ContextError) Unwrap() error { return e.Err }

// UnknownFactoryTypeError is returned when a component config's "type"
// discriminant has no matching entry in the FactoryRegistry it was built
// against.
type UnknownFactoryTypeError struct {
	Type Name
}

func (e *UnknownFactoryTypeError) Error() string {
	return fmt.Sprintf("streamgraph: unknown component factory type %q", e.Type)
}

// DuplicateFactoryTypeError is returned by FactoryRegistry.Register when
// the type name is already bound; the registry is open but not silently
// overwritten.
type DuplicateFactoryTypeError struct {
	Type Name
}

func (e *DuplicateFactoryTypeError) Error() string {
	return fmt.Sprintf("streamgraph: factory type %q already registered", e.Type)
}

// InvalidInputSpecError is returned by BuildGraph when a component config's
// "input" field isn't one of the allowed shapes: absent, a single
// "source.channel" string, a list of such strings, or a channel-to-list
// mapping.
type InvalidInputSpecError struct {
	Component Name
	Detail    string
}

func (e *InvalidInputSpecError) Error() string {
	return fmt.Sprintf("streamgraph: component %q has an invalid input spec: %s", e.Component, e.Detail)
}

// MalformedEndpointRefError is returned when a "source.channel" reference
// string in a config's input spec doesn't split into exactly those two
// parts.
type MalformedEndpointRefError struct {
	Ref string
}

func (e *MalformedEndpointRefError) Error() string {
	return fmt.Sprintf("streamgraph: malformed endpoint reference %q (want \"source.channel\")", e.Ref)
}

// PoisonedLockError is the error a panicked component invocation resolves
// to. recoverComponentPanic recovers the panic, logs it once, and
// completes the invocation as a failure, so the panic neither takes down
// the worker goroutine nor wedges the component's aggregation state; the
// engine continues serving other components.
type PoisonedLockError struct {
	Component Name
	RunID     RunID
	Recovered any
}

func (e *PoisonedLockError) Error() string {
	return fmt.Sprintf("streamgraph: component %q run=%s panicked: %v", e.Component, e.RunID, e.Recovered)
}
