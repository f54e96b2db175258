package streamgraph

import "github.com/zoobzio/hookz"

// Hook event keys a host can subscribe to without coupling to capitan's
// log sink.
var (
	EventDispatched = hookz.Key("runner.dispatched")
	EventFinished   = hookz.Key("runner.finished")
	EventStarved    = hookz.Key("runner.starved")
)

// DispatchEvent is emitted via hookz whenever the runner schedules a
// component invocation.
type DispatchEvent struct {
	Component Name
	RunID     RunID
}

// FinishEvent is emitted whenever a component invocation completes, right
// after its $finish sentinel has been handed to every direct listener;
// the listeners' own runs are scheduled, not awaited.
type FinishEvent struct {
	Component Name
	RunID     RunID
}

// StarvedEvent is emitted whenever an aggregation sub-tree is freed without
// dispatch because an upstream Single output declined to emit.
type StarvedEvent struct {
	Component Name
	RunID     RunID
}

// HookSet bundles the three typed hookz.Hooks registries a Runner
// exposes, one per lifecycle event.
// Fields are exported directly so callers subscribe using whatever
// registration API hookz.Hooks[T] itself provides, rather than through a
// second wrapper layer here.
type HookSet struct {
	Dispatched *hookz.Hooks[DispatchEvent]
	Finished   *hookz.Hooks[FinishEvent]
	Starved    *hookz.Hooks[StarvedEvent]
}

func newHookSet() *HookSet {
	return &HookSet{
		Dispatched: hookz.New[DispatchEvent](),
		Finished:   hookz.New[FinishEvent](),
		Starved:    hookz.New[StarvedEvent](),
	}
}
