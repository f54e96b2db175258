package streamgraph

import "sync"

// funcComponent is a minimal Component whose behavior is supplied by
// closures, used throughout this package's tests to build small pipeline
// fixtures without a new named type per scenario.
type funcComponent struct {
	BaseComponent
	kind    InputKind
	outputs map[Name]OutputKind
	run     func(ctx *Context) error
	canTake func(Name) bool
}

func (f *funcComponent) Inputs() InputKind { return f.kind }

func (f *funcComponent) OutputKind(name Name) OutputKind {
	if f.outputs == nil {
		return OutputNone
	}
	if k, ok := f.outputs[name]; ok {
		return k
	}
	return OutputNone
}

func (f *funcComponent) CanTake(name Name) bool {
	if f.canTake == nil {
		return false
	}
	return f.canTake(name)
}

func (f *funcComponent) Run(ctx *Context) error {
	if f.run == nil {
		return nil
	}
	return f.run(ctx)
}

// primarySingle builds a Primary-input component with one anonymous
// OutputSingle channel driven by run.
func primarySingle(run func(ctx *Context) error) *funcComponent {
	return &funcComponent{
		kind:    InputsPrimary(),
		outputs: map[Name]OutputKind{"": OutputSingle},
		run:     run,
	}
}

// primarySink builds a Primary-input, no-output component (a leaf/sink).
func primarySink(run func(ctx *Context) error) *funcComponent {
	return &funcComponent{
		kind: InputsPrimary(),
		run:  run,
	}
}

// primaryMulti builds a Primary-input component with one anonymous
// OutputMultiple channel driven by run.
func primaryMulti(run func(ctx *Context) error) *funcComponent {
	return &funcComponent{
		kind:    InputsPrimary(),
		outputs: map[Name]OutputKind{"": OutputMultiple},
		run:     run,
	}
}

// namedJoin builds a Named-input component over slots, with no outputs,
// driven by run.
func namedJoin(run func(ctx *Context) error, slots ...Name) *funcComponent {
	return &funcComponent{
		kind: InputsNamed(slots...),
		run:  run,
	}
}

// minTreeJoin builds a MinTree-input component over slots, with no
// outputs, driven by run.
func minTreeJoin(run func(ctx *Context) error, slots ...Name) *funcComponent {
	return &funcComponent{
		kind: InputsMinTree(slots...),
		run:  run,
	}
}

// fullTreeJoin builds a FullTree-input component over slots, with no
// outputs, driven by run.
func fullTreeJoin(run func(ctx *Context) error, slots ...Name) *funcComponent {
	return &funcComponent{
		kind: InputsFullTree(slots...),
		run:  run,
	}
}

// callRecorder collects every Run invocation's RunID and a caller-supplied
// snapshot for later assertion. Safe for concurrent use since invocations
// may run on different worker-pool goroutines.
type callRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	runID RunID
	note  any
}

func (r *callRecorder) record(runID RunID, note any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{runID: runID.Clone(), note: note})
}

func (r *callRecorder) snapshot() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *callRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// waitGroupComplete returns an OnComplete callback plus a channel that's
// closed once the callback fires, for tests that need to block until a
// top-level Run has fully settled without importing sync.WaitGroup at
// every call site.
func waitGroupComplete() (func(), <-chan struct{}) {
	done := make(chan struct{})
	return func() { close(done) }, done
}
