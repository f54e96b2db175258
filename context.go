package streamgraph

import (
	"context"
	"sync"
	"sync/atomic"
)

// dispatchState is shared by a component invocation's initial Context and
// every Context handed to a Context.Defer continuation. The invocation is
// finished — and $finish propagates to dependents — only once pending
// drops to zero. It also owns the invocation's branch ordinal counters:
// one per output channel, starting at zero, so the ordinals assigned on a
// Multiple channel within one invocation always form a contiguous prefix
// of the naturals in submission order.
type dispatchState struct {
	pending int32

	ordMu    sync.Mutex
	ordinals map[Name]uint64
}

// nextOrdinal allocates the next branch ordinal for channel within this
// invocation. The counter serves only for identity (tree keying and RunID
// extension), never for ordering memory operations.
func (s *dispatchState) nextOrdinal(channel Name) uint64 {
	s.ordMu.Lock()
	defer s.ordMu.Unlock()
	if s.ordinals == nil {
		s.ordinals = make(map[Name]uint64)
	}
	n := s.ordinals[channel]
	s.ordinals[channel] = n + 1
	return n
}

// ComponentArgs is the packed, positional argument bundle a dispatched
// invocation carries: either a single anonymous Value (Primary) or a
// resolved InputTree (Named, MinTree, FullTree).
type ComponentArgs struct {
	kind InputKindTag
	anon Value
	tree *InputTree
}

func (a ComponentArgs) get(name Name) (Value, bool) {
	if a.tree != nil {
		return a.tree.Get(name)
	}
	if name == "" && a.anon != nil {
		return a.anon, true
	}
	return nil, false
}

// Context is passed to a Component's Run method (and to any Defer
// continuation). It exposes the component's resolved inputs and the
// Submit/Defer API for emitting outputs and scheduling continuations.
type Context struct {
	ctx    context.Context
	runner *Runner
	self   RunnerComponentID
	runID  RunID
	args   ComponentArgs
	inv    *invocationState
	state  *dispatchState
}

// Context returns the underlying context.Context carrying cancellation
// and deadlines for this invocation.
func (c *Context) Context() context.Context { return c.ctx }

// RunID returns this invocation's run id.
func (c *Context) RunID() RunID { return c.runID }

// Get returns the value bound to the named input ("" for a Primary
// component's single anonymous input).
func (c *Context) Get(name Name) (Value, bool) {
	return c.args.get(name)
}

// GetAs downcasts the named input via As[T], returning a MissingInputError
// if no value is bound to that name.
func GetAs[T any](c *Context, name Name) (T, error) {
	v, ok := c.Get(name)
	if !ok {
		var zero T
		return zero, &MissingInputError{Name: name}
	}
	return As[T](v)
}

// Tree returns the resolved InputTree backing this invocation's inputs,
// or nil for a Primary component. Named components can usually just call
// Get/GetAs; MinTree and FullTree components that need to walk branch
// children (the broadcast case — see InputTree.Children) use this.
func (c *Context) Tree() *InputTree {
	return c.args.tree
}

// Listeners reports how many dependents are wired to the given output
// channel, so a component can skip producing a value nobody will see.
func (c *Context) Listeners(channel Name) int {
	return c.runner.listenerCount(c.self, channel)
}

// Submit emits value on the named output channel. Channels whose
// OutputKind is Multiple allocate a fresh branch ordinal per call and
// extend the RunID for every listener; all other channels reuse the
// current RunID unchanged. Submitting on a channel with no listeners is a
// safe no-op. Submit never waits on the dispatched work: each dispatch it
// causes runs on its own worker-pool goroutine, and Submit itself only
// briefly takes a destination's aggregation-tree mutex.
func (c *Context) Submit(channel Name, value Value) error {
	return c.runner.submit(c, channel, value)
}

// Defer schedules fn to run on the worker pool as a continuation of this
// invocation. The invocation (and the $finish signal propagated to
// dependents) is held open until every deferred continuation has also
// returned, so a component that needs to do asynchronous work after
// returning from Run can still submit outputs from the continuation.
func (c *Context) Defer(fn func(*Context) error) {
	atomic.AddInt32(&c.state.pending, 1)
	cont := &Context{ctx: c.ctx, runner: c.runner, self: c.self, runID: c.runID, args: c.args, inv: c.inv, state: c.state}
	c.runner.pool.Submit(c.ctx, func() {
		var err error
		func() {
			defer recoverComponentPanic(c.ctx, c.runner, c.self, c.runID, &err)
			err = fn(cont)
		}()
		c.runner.completeOne(cont, err)
	})
}
