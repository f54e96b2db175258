package streamgraph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Runner is the compiled, immutable dispatch engine produced by
// Graph.Compile. Its component array and wiring never change after
// construction; only the per-component aggregation trees and the
// in-flight invocation bookkeeping mutate at runtime.
type Runner struct {
	components []*componentData
	lookup     map[Name]RunnerComponentID

	invocationCounter atomic.Uint64
	runningCount      atomic.Int64

	invMu sync.Mutex
	invs  map[uint64]*invocationState

	pool    *workerPool
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *HookSet
	clock   clockz.Clock
}

// invocationState tracks one top-level Run call's outstanding work across
// its entire fan-out subtree: every dispatched component invocation holds
// one reference, released when that invocation (and all of its
// continuations) finishes. When the count reaches zero the whole
// top-level invocation is complete and OnComplete fires.
type invocationState struct {
	refcount   int64
	onComplete func()
}

func newRunner(components []*componentData, lookup map[Name]RunnerComponentID) *Runner {
	r := &Runner{
		components: components,
		lookup:     lookup,
		invs:       make(map[uint64]*invocationState),
		pool:       newWorkerPool(len(components)),
		metrics:    newMetrics(),
		tracer:     newTracer(),
		hooks:      newHookSet(),
		clock:      clockz.RealClock,
	}
	return r
}

// WithWorkers replaces the runner's worker pool with one sized to workers
// slots. Call it before the first Run.
func (r *Runner) WithWorkers(workers int) *Runner {
	r.pool = newWorkerPool(workers)
	return r
}

// WithClock installs a custom clock, for deterministic tests.
func (r *Runner) WithClock(clock clockz.Clock) *Runner {
	r.clock = clock
	r.pool = r.pool.WithClock(clock)
	return r
}

// Hooks exposes the runner's lifecycle event registries for host
// subscription, independent of the capitan log sink.
func (r *Runner) Hooks() *HookSet { return r.hooks }

// Metrics exposes the runner's metricz.Registry.
func (r *Runner) Metrics() *metricz.Registry { return r.metrics }

func (r *Runner) componentData(id RunnerComponentID) *componentData {
	if !id.IsValid() || id.Index() >= len(r.components) {
		return nil
	}
	return r.components[id.Index()]
}

// Component looks up a component's runtime id by its published name.
func (r *Runner) Component(name Name) (RunnerComponentID, bool) {
	id, ok := r.lookup[name]
	return id, ok
}

// ComponentName returns the debug name of the component at id, or false
// if the id doesn't refer to a compiled component.
func (r *Runner) ComponentName(id RunnerComponentID) (Name, bool) {
	cd := r.componentData(id)
	if cd == nil {
		return "", false
	}
	return cd.name, true
}

// Components returns every compiled component's name, in runner index
// order: the name at position i belongs to RunnerComponentID i.
func (r *Runner) Components() []Name {
	out := make([]Name, len(r.components))
	for i, cd := range r.components {
		out[i] = cd.name
	}
	return out
}

// PackArgs builds the positional ComponentArgs bundle for id from spec,
// in the order the component's compiled form expects: a single anonymous
// Value for Primary, or a resolved InputTree for Named/MinTree/FullTree.
func (r *Runner) PackArgs(id RunnerComponentID, spec InputSpecifier) (ComponentArgs, error) {
	cd := r.componentData(id)
	if cd == nil {
		return ComponentArgs{}, &UnknownComponentError{ID: NewComponentID(id.Index())}
	}
	return packArgs(cd, spec)
}

func (r *Runner) listenerCount(self RunnerComponentID, channel Name) int {
	cd := r.componentData(self)
	if cd == nil {
		return 0
	}
	return len(cd.dependents[channel])
}

// RunParams configures a top-level invocation started by Run.
type RunParams struct {
	// Entry names the published component to invoke. Set either Entry or
	// EntryID, not both.
	Entry   Name
	EntryID RunnerComponentID
	Args    InputSpecifier
	// MaxRunning caps the number of concurrently in-flight top-level
	// invocations; zero means unbounded.
	MaxRunning int
	// OnComplete, if set, is called once every invocation spawned by this
	// Run (the entry and its whole fan-out subtree) has finished.
	OnComplete func()
}

// RunHandle identifies one top-level invocation.
type RunHandle struct {
	RunID        RunID
	InvocationID uuid.UUID
}

// Run starts one top-level invocation of the entry component. It returns
// as soon as the entry has been scheduled — not once it (or its fan-out
// subtree) has finished; use RunParams.OnComplete to observe completion.
func (r *Runner) Run(ctx context.Context, params RunParams) (*RunHandle, error) {
	entryID := params.EntryID
	if params.Entry != "" {
		id, ok := r.lookup[params.Entry]
		if !ok {
			return nil, &UnknownComponentError{Name: params.Entry}
		}
		entryID = id
	}
	cd := r.componentData(entryID)
	if cd == nil {
		return nil, &UnknownComponentError{ID: NewComponentID(entryID.Index())}
	}

	if params.MaxRunning > 0 {
		if running := r.runningCount.Load(); running >= int64(params.MaxRunning) {
			return nil, &TooManyRunningError{Running: int(running), Max: params.MaxRunning}
		}
	}

	args, err := packArgs(cd, params.Args)
	if err != nil {
		return nil, err
	}

	top := r.invocationCounter.Add(1) - 1
	runID := RunID{top}
	invocationID := uuid.New()

	r.runningCount.Add(1)
	inv := &invocationState{refcount: 1, onComplete: params.OnComplete}
	r.invMu.Lock()
	r.invs[top] = inv
	r.invMu.Unlock()

	capitan.Info(ctx, SignalRunStarted,
		FieldComponent.Field(cd.name),
		FieldRunID.Field(runID.String()),
		FieldInvocationID.Field(invocationID.String()),
	)

	r.dispatch(ctx, inv, entryID, runID, args)

	return &RunHandle{RunID: runID, InvocationID: invocationID}, nil
}

// dispatch schedules one component invocation on the worker pool,
// pre-propagating finish obligations to its tree-based dependents first.
func (r *Runner) dispatch(ctx context.Context, inv *invocationState, id RunnerComponentID, runID RunID, args ComponentArgs) {
	cd := r.componentData(id)
	r.prePropagateAll(cd, runID)

	clock := getClock(r.clock)
	r.metrics.Counter(MetricDispatchedTotal).Inc()
	r.metrics.Gauge(MetricRunningInvocations).Set(float64(r.runningCount.Load()))
	capitan.Info(ctx, SignalDispatch,
		FieldComponent.Field(cd.name),
		FieldRunID.Field(runID.String()),
		FieldTimestamp.Field(float64(clock.Now().Unix())),
	)
	_ = r.hooks.Dispatched.Emit(ctx, EventDispatched, DispatchEvent{Component: cd.name, RunID: runID})

	state := &dispatchState{pending: 1}
	c := &Context{ctx: ctx, runner: r, self: id, runID: runID, args: args, inv: inv, state: state}

	r.pool.Submit(ctx, func() {
		spanCtx, span := r.tracer.StartSpan(ctx, SpanRun)
		span.SetTag(TagComponent, cd.name)
		span.SetTag(TagRunID, runID.String())
		c.ctx = spanCtx

		var err error
		func() {
			defer recoverComponentPanic(spanCtx, r, id, runID, &err)
			err = cd.component.Run(c)
		}()
		if err != nil {
			span.SetTag(TagError, err.Error())
		} else {
			span.SetTag(TagSuccess, "true")
		}
		span.Finish()

		r.completeOne(c, err)
	})
}

// completeOne releases one pending reference on c's dispatch state. Once
// every reference (the initial Run call plus any Defer continuations) has
// resolved, the invocation is finished: its dependents' finish
// obligations are released and the top-level refcount is decremented.
func (r *Runner) completeOne(c *Context, err error) {
	if atomic.AddInt32(&c.state.pending, -1) != 0 {
		return
	}

	cd := r.componentData(c.self)
	if err != nil {
		capitan.Error(c.ctx, SignalFinish,
			FieldComponent.Field(cd.name),
			FieldRunID.Field(c.runID.String()),
			FieldError.Field(err.Error()),
		)
	}
	r.emitFinish(c.ctx, c.inv, c.self, c.runID)

	r.metrics.Counter(MetricFinishedTotal).Inc()
	_ = r.hooks.Finished.Emit(c.ctx, EventFinished, FinishEvent{Component: cd.name, RunID: c.runID})

	for _, res := range r.postPropagateAll(cd, c.runID) {
		r.resolveTree(c.ctx, c.inv, res)
	}

	r.releaseInvocation(c.inv, c.runID[0])
}

func (r *Runner) releaseInvocation(inv *invocationState, top uint64) {
	if atomic.AddInt64(&inv.refcount, -1) != 0 {
		return
	}
	running := r.runningCount.Add(-1)
	r.metrics.Gauge(MetricRunningInvocations).Set(float64(running))
	r.invMu.Lock()
	delete(r.invs, top)
	r.invMu.Unlock()
	if inv.onComplete != nil {
		inv.onComplete()
	}
}

// prePropagateAll registers every tree-based dependent's pending
// contribution from this invocation before it runs.
func (r *Runner) prePropagateAll(cd *componentData, runID RunID) {
	for _, d := range cd.allDependents {
		dst := r.componentData(d.Dst)
		if dst.inputKind.Tag == InputPrimary {
			continue
		}
		depth := dst.slots[d.DstSlot].depth
		if d.Multi {
			depth--
		}
		dst.prePropagate(runID[0], preficeOrNil(runID, depth))
	}
}

// treeResolution is one dependent's aggregation root having settled —
// either ready to dispatch with its InputTree, or starved (a required
// slot was never filled before every producer finished).
type treeResolution struct {
	dst     RunnerComponentID
	top     uint64
	root    *treeNode
	outcome rootOutcome
}

// postPropagateAll releases cd's invocation's finish obligation on every
// tree-based dependent, collecting every root that resolved (ready or
// starved) as a result.
func (r *Runner) postPropagateAll(cd *componentData, runID RunID) []treeResolution {
	var out []treeResolution
	for _, d := range cd.allDependents {
		dst := r.componentData(d.Dst)
		if dst.inputKind.Tag == InputPrimary {
			continue
		}
		depth := dst.slots[d.DstSlot].depth
		if d.Multi {
			depth--
		}
		root, outcome := dst.postPropagate(runID[0], preficeOrNil(runID, depth))
		if outcome == outcomePending {
			continue
		}
		out = append(out, treeResolution{dst: d.Dst, top: runID[0], root: root, outcome: outcome})
	}
	return out
}

// resolveTree dispatches a newly-ready aggregation root with its
// InputTree, or logs and counts a starved one. It never blocks on the
// dispatched work itself.
func (r *Runner) resolveTree(ctx context.Context, inv *invocationState, res treeResolution) {
	dst := r.componentData(res.dst)
	rootRunID := RunID{res.top}
	switch res.outcome {
	case outcomeReady:
		args := ComponentArgs{kind: dst.inputKind.Tag, tree: &InputTree{cd: dst, node: res.root}}
		atomic.AddInt64(&inv.refcount, 1)
		r.dispatch(ctx, inv, res.dst, rootRunID, args)
	case outcomeStarved:
		r.metrics.Counter(MetricStarvedTotal).Inc()
		_ = r.hooks.Starved.Emit(ctx, EventStarved, StarvedEvent{Component: dst.name, RunID: rootRunID})
		capitan.Warn(ctx, SignalStarved, FieldComponent.Field(dst.name), FieldRunID.Field(rootRunID.String()))
	}
}

func preficeOrNil(runID RunID, depth int) []uint64 {
	if depth <= 0 {
		return nil
	}
	// An entry invoked mid-graph carries no ancestor ordinals; use what
	// the run id actually has.
	if depth > len(runID)-1 {
		depth = len(runID) - 1
	}
	return []uint64(runID[1 : 1+depth])
}

// submit is the engine-side implementation behind Context.Submit. On a
// Multiple channel every submission allocates a fresh branch ordinal from
// the invocation's own per-channel counter, so within one invocation the
// ordinals on one channel are 0, 1, 2, ... in submission order.
func (r *Runner) submit(c *Context, channel Name, value Value) error {
	cd := r.componentData(c.self)
	ctx := c.ctx

	if strings.HasPrefix(channel, "$") {
		capitan.Warn(ctx, SignalReservedChannel, FieldComponent.Field(cd.name), FieldChannel.Field(channel))
		return nil
	}

	deps, ok := cd.dependents[channel]
	if !ok || len(deps) == 0 {
		if cd.component.OutputKind(channel) == OutputNone {
			capitan.Warn(ctx, SignalUndeclaredChannel, FieldComponent.Field(cd.name), FieldChannel.Field(channel))
		}
		return nil
	}

	isMulti := deps[0].Multi
	targetRunID := c.runID
	if isMulti {
		targetRunID = c.runID.Append(c.state.nextOrdinal(channel))
	}

	for _, d := range deps {
		r.dispatchDependent(ctx, c.inv, d, targetRunID, value)
	}
	return nil
}

// emitFinish delivers the engine's own $finish sentinel to every dependent
// wired on self's reserved FinishChannel, once self's invocation (including
// every Defer continuation) has fully returned — guaranteed by completeOne
// calling this only once its pending counter reaches zero, which is
// strictly after every explicit Submit this invocation made. Unlike
// submit, it bypasses the "$"-prefix rejection: only the engine ever calls
// this, never a component body.
func (r *Runner) emitFinish(ctx context.Context, inv *invocationState, self RunnerComponentID, runID RunID) {
	cd := r.componentData(self)
	deps, ok := cd.dependents[FinishChannel]
	if !ok || len(deps) == 0 {
		return
	}
	for _, d := range deps {
		r.dispatchDependent(ctx, inv, d, runID, finishValue)
	}
}

// dispatchDependent delivers one value to one dependent edge: either an
// immediate dispatch (Primary destinations have nothing to wait for) or
// an aggregation-tree insertion, which may or may not resolve the
// destination's root. Every actual call to dispatch gets its own
// top-level refcount reference; values that land in a tree without
// resolving it don't need one — the tree's own remainingFinish
// bookkeeping (see prePropagateAll/postPropagateAll) is what keeps them
// from being freed prematurely.
func (r *Runner) dispatchDependent(ctx context.Context, inv *invocationState, d compiledDependent, runID RunID, value Value) {
	dst := r.componentData(d.Dst)

	if dst.inputKind.Tag == InputPrimary {
		atomic.AddInt64(&inv.refcount, 1)
		args := ComponentArgs{kind: InputPrimary, anon: value}
		r.dispatch(ctx, inv, d.Dst, runID, args)
		return
	}

	slotDepth := dst.slots[d.DstSlot].depth
	path := preficeOrNil(runID, slotDepth)
	root, outcome := dst.insertValue(runID[0], path, d.DstSlot, value)
	if outcome == outcomePending {
		return
	}
	r.resolveTree(ctx, inv, treeResolution{dst: d.Dst, top: runID[0], root: root, outcome: outcome})
}

// AssertClean reports every component whose aggregation-tree state hasn't
// fully drained — a leaked node indicates a finish signal that was never
// observed, or a bug in the reference-counting above. Tests call this
// after waiting for a run to settle.
func (r *Runner) AssertClean() error {
	var leaks []string
	for _, cd := range r.components {
		cd.mu.Lock()
		if len(cd.trees) > 0 {
			leaks = append(leaks, fmt.Sprintf("%s: %d live invocation tree(s)", cd.name, len(cd.trees)))
		}
		cd.mu.Unlock()
	}
	if len(leaks) == 0 {
		return nil
	}
	return fmt.Errorf("streamgraph: unclean runner state: %v", leaks)
}

// Wait blocks until every task submitted to the worker pool so far has
// returned.
func (r *Runner) Wait() {
	r.pool.Wait()
}
