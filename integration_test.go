package streamgraph

import (
	"context"
	"sync"
	"testing"
	"time"
)

// waitDone blocks on done, failing the test if it doesn't close within a
// generous bound — invocations run on the worker pool so a hang here means
// a real deadlock, not a slow disk.
func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for invocation to complete")
	}
}

// TestLinearChain covers a linear chain: P -> Q, both Primary, P emits
// exactly one Single output carrying "data"; Q observes it once.
func TestLinearChain(t *testing.T) {
	rec := &callRecorder{}
	p := primarySingle(func(ctx *Context) error {
		return ctx.Submit("", NewValue("data", "data"))
	})
	q := primarySink(func(ctx *Context) error {
		v, _ := ctx.Get("")
		s, _ := As[string](v)
		rec.record(ctx.RunID(), s)
		return nil
	})

	g := NewGraph()
	g.AddNamed("p", p)
	g.AddNamed("q", q)
	if err := g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q"}); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "p", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected Q.Run exactly once, got %d", len(calls))
	}
	if calls[0].note != "data" {
		t.Errorf("Q observed %v, want %q", calls[0].note, "data")
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestFanOutThree covers a three-way fan-out: P has one Multiple output emitting
// [1,2,3]; Q (Primary) downstream runs three times with inputs 1,2,3, and
// the three RunIds differ only in their last ordinal (0,1,2).
func TestFanOutThree(t *testing.T) {
	rec := &callRecorder{}
	p := primaryMulti(func(ctx *Context) error {
		for _, n := range []int{1, 2, 3} {
			if err := ctx.Submit("", NewValue("n", n)); err != nil {
				return err
			}
		}
		return nil
	})
	q := primarySink(func(ctx *Context) error {
		v, _ := ctx.Get("")
		n, _ := As[int](v)
		rec.record(ctx.RunID(), n)
		return nil
	})

	g := NewGraph()
	g.AddNamed("p", p)
	g.AddNamed("q", q)
	if err := g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q"}); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "p", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	calls := rec.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected Q.Run three times, got %d", len(calls))
	}

	seenValues := map[int]RunID{}
	for _, c := range calls {
		seenValues[c.note.(int)] = c.runID
	}
	for _, want := range []int{1, 2, 3} {
		runID, ok := seenValues[want]
		if !ok {
			t.Fatalf("expected Q to observe value %d", want)
		}
		if len(runID) != 2 {
			t.Fatalf("expected a 2-element RunID (top + one ordinal), got %v", runID)
		}
	}
	ordinals := map[uint64]bool{}
	for _, runID := range seenValues {
		ordinals[runID[1]] = true
	}
	for _, want := range []uint64{0, 1, 2} {
		if !ordinals[want] {
			t.Errorf("expected branch ordinal %d among the three RunIDs, got %v", want, seenValues)
		}
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestBranchOrdinalsResetPerInvocation: the ordinals assigned on one
// Multiple channel always start at 0 for each invocation, so two
// successive top-level runs see the same contiguous 0..n-1 ordinals.
func TestBranchOrdinalsResetPerInvocation(t *testing.T) {
	rec := &callRecorder{}
	p := primaryMulti(func(ctx *Context) error {
		for i := 0; i < 2; i++ {
			if err := ctx.Submit("", NewValue("n", i)); err != nil {
				return err
			}
		}
		return nil
	})
	q := primarySink(func(ctx *Context) error {
		rec.record(ctx.RunID(), nil)
		return nil
	})

	g := NewGraph()
	g.AddNamed("p", p)
	g.AddNamed("q", q)
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q"}))
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	for run := 0; run < 2; run++ {
		onComplete, done := waitGroupComplete()
		if _, err := runner.Run(context.Background(), RunParams{Entry: "p", OnComplete: onComplete}); err != nil {
			t.Fatalf("Run %d: %v", run, err)
		}
		waitDone(t, done)
	}
	runner.Wait()

	perTop := map[uint64]map[uint64]bool{}
	for _, c := range rec.snapshot() {
		if len(c.runID) != 2 {
			t.Fatalf("expected 2-element RunIDs, got %v", c.runID)
		}
		top := c.runID[0]
		if perTop[top] == nil {
			perTop[top] = map[uint64]bool{}
		}
		perTop[top][c.runID[1]] = true
	}
	if len(perTop) != 2 {
		t.Fatalf("expected invocations under 2 distinct top-level ordinals, got %v", perTop)
	}
	for top, ords := range perTop {
		if len(ords) != 2 || !ords[0] || !ords[1] {
			t.Errorf("top %d: expected branch ordinals {0,1}, got %v", top, ords)
		}
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestNamedJoin covers a flat join: two Single producers feed a
// Named{"x","y"} join; Q.run is invoked exactly once with "a" and "b".
func TestNamedJoin(t *testing.T) {
	rec := &callRecorder{}
	trigger := &funcComponent{
		kind:    InputsPrimary(),
		outputs: map[Name]OutputKind{"toP": OutputSingle, "toR": OutputSingle},
		run: func(ctx *Context) error {
			if err := ctx.Submit("toP", NewValue("", struct{}{})); err != nil {
				return err
			}
			return ctx.Submit("toR", NewValue("", struct{}{}))
		},
	}
	p := primarySingle(func(ctx *Context) error { return ctx.Submit("", NewValue("a", "a")) })
	r := primarySingle(func(ctx *Context) error { return ctx.Submit("", NewValue("b", "b")) })
	q := namedJoin(func(ctx *Context) error {
		x, _ := ctx.Get("x")
		y, _ := ctx.Get("y")
		xs, _ := As[string](x)
		ys, _ := As[string](y)
		rec.record(ctx.RunID(), [2]string{xs, ys})
		return nil
	}, "x", "y")

	g := NewGraph()
	g.AddNamed("trigger", trigger)
	g.AddNamed("p", p)
	g.AddNamed("r", r)
	g.AddNamed("q", q)
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toP"}, Endpoint{Name: "p"}))
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toR"}, Endpoint{Name: "r"}))
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q", Channel: "x"}))
	must(t, g.AddDependency(Endpoint{Name: "r"}, Endpoint{Name: "q", Channel: "y"}))

	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "trigger", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected Q.Run exactly once, got %d", len(calls))
	}
	got := calls[0].note.([2]string)
	if got != [2]string{"a", "b"} {
		t.Errorf("Q observed %v, want [a b]", got)
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestBroadcastJoin covers a broadcast join: P emits Multiple [10,20]; R emits
// Single "k"; Q is MinTree{"x","y"} rooted at P. Q.run is invoked exactly
// once with an InputTree carrying two children, each pairing (10,"k") and
// (20,"k").
func TestBroadcastJoin(t *testing.T) {
	var gotTree *InputTree
	rec := &callRecorder{}
	trigger := &funcComponent{
		kind:    InputsPrimary(),
		outputs: map[Name]OutputKind{"toP": OutputSingle, "toR": OutputSingle},
		run: func(ctx *Context) error {
			if err := ctx.Submit("toP", NewValue("", struct{}{})); err != nil {
				return err
			}
			return ctx.Submit("toR", NewValue("", struct{}{}))
		},
	}
	p := primaryMulti(func(ctx *Context) error {
		if err := ctx.Submit("", NewValue("", 10)); err != nil {
			return err
		}
		return ctx.Submit("", NewValue("", 20))
	})
	r := primarySingle(func(ctx *Context) error { return ctx.Submit("", NewValue("k", "k")) })
	q := minTreeJoin(func(ctx *Context) error {
		rec.record(ctx.RunID(), nil)
		gotTree = ctx.Tree()
		return nil
	}, "x", "y")

	g := NewGraph()
	g.AddNamed("trigger", trigger)
	g.AddNamed("p", p)
	g.AddNamed("r", r)
	g.AddNamed("q", q)
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toP"}, Endpoint{Name: "p"}))
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toR"}, Endpoint{Name: "r"}))
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q", Channel: "x"}))
	must(t, g.AddDependency(Endpoint{Name: "r"}, Endpoint{Name: "q", Channel: "y"}))

	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "trigger", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected Q.Run exactly once, got %d", len(calls))
	}
	if gotTree == nil {
		t.Fatal("expected a resolved InputTree")
	}
	children := gotTree.Children()
	if len(children) != 2 {
		t.Fatalf("expected 2 broadcast children, got %d", len(children))
	}
	want := map[int]string{10: "k", 20: "k"}
	seen := map[int]bool{}
	for _, child := range children {
		xv, ok := child.Get("x")
		if !ok {
			t.Fatal("child missing x")
		}
		yv, ok := child.Get("y")
		if !ok {
			t.Fatal("child missing y (should be visible via ancestor broadcast)")
		}
		x, _ := As[int](xv)
		y, _ := As[string](yv)
		if want[x] != y {
			t.Errorf("child (x=%d): y=%q, want %q", x, y, want[x])
		}
		seen[x] = true
	}
	if !seen[10] || !seen[20] {
		t.Errorf("expected children for x=10 and x=20, got %v", seen)
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestMissingEndpointRejection: AddDependency naming a
// nonexistent source returns an error naming it, and the graph is
// unchanged.
func TestMissingEndpointRejection(t *testing.T) {
	g := NewGraph()
	g.AddNamed("existing", primarySink(nil))

	err := g.AddDependency(Endpoint{Name: "no_such"}, Endpoint{Name: "existing"})
	var missing *MissingEndpointError
	if !asError(err, &missing) {
		t.Fatalf("expected *MissingEndpointError, got %v", err)
	}
	if missing.Name != "no_such" {
		t.Errorf("error should name the missing source, got %+v", missing)
	}

	// The graph should compile as if nothing happened: a single
	// unconnected component, no edges.
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile after rejected AddDependency: %v", err)
	}
	if len(runner.Components()) != 1 {
		t.Fatalf("expected graph unchanged (1 component), got %d", len(runner.Components()))
	}
}

// TestArityMismatch: running a Named{"x","y"}
// component with only x bound returns ArgsMismatchError{2,1}; no task is
// spawned.
func TestArityMismatch(t *testing.T) {
	rec := &callRecorder{}
	q := namedJoin(func(ctx *Context) error {
		rec.record(ctx.RunID(), nil)
		return nil
	}, "x", "y")

	g := NewGraph()
	g.AddNamed("q", q)
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	_, err = runner.Run(context.Background(), RunParams{
		Entry: "q",
		Args:  ArgNamed(map[Name]Value{"x": NewValue("", "only-x")}),
	})
	var mismatch *ArgsMismatchError
	if !asError(err, &mismatch) {
		t.Fatalf("expected *ArgsMismatchError, got %v", err)
	}
	if mismatch.Expected != 2 || mismatch.Given != 1 {
		t.Errorf("ArgsMismatchError = %+v, want {2 1}", mismatch)
	}
	if rec.len() != 0 {
		t.Fatalf("expected no invocation spawned, got %d", rec.len())
	}
}

// TestEntryPrimaryNoOutputsCompletesOnce: an entry with Primary input
// and no outputs runs exactly
// once, then $finish fires, then the completion callback.
func TestEntryPrimaryNoOutputsCompletesOnce(t *testing.T) {
	rec := &callRecorder{}
	p := primarySink(func(ctx *Context) error {
		rec.record(ctx.RunID(), nil)
		return nil
	})
	g := NewGraph()
	g.AddNamed("p", p)
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "p", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()
	if rec.len() != 1 {
		t.Fatalf("expected exactly one invocation, got %d", rec.len())
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestMultipleOutputZeroValues: an entry whose Multiple output emits
// nothing never dispatches its downstream, $finish still fires, and the
// top-level completion callback runs.
func TestMultipleOutputZeroValues(t *testing.T) {
	rec := &callRecorder{}
	p := primaryMulti(func(ctx *Context) error { return nil })
	q := primarySink(func(ctx *Context) error {
		rec.record(ctx.RunID(), nil)
		return nil
	})

	g := NewGraph()
	g.AddNamed("p", p)
	g.AddNamed("q", q)
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q"}))
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "p", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	if rec.len() != 0 {
		t.Fatalf("expected downstream never to run, got %d invocations", rec.len())
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestSingleOutputDeclinesToEmitStarvesDownstream covers the boundary
// behavior: a Single-output component that emits nothing leaves a
// downstream named slot unpopulated; the join never dispatches, and the
// aggregation is reclaimed without leaking.
func TestSingleOutputDeclinesToEmitStarvesDownstream(t *testing.T) {
	rec := &callRecorder{}
	trigger := &funcComponent{
		kind:    InputsPrimary(),
		outputs: map[Name]OutputKind{"toP": OutputSingle, "toR": OutputSingle},
		run: func(ctx *Context) error {
			if err := ctx.Submit("toP", NewValue("", struct{}{})); err != nil {
				return err
			}
			return ctx.Submit("toR", NewValue("", struct{}{}))
		},
	}
	// p declares a Single output but never submits on it.
	p := primarySingle(func(ctx *Context) error { return nil })
	r := primarySingle(func(ctx *Context) error { return ctx.Submit("", NewValue("b", "b")) })
	q := namedJoin(func(ctx *Context) error {
		rec.record(ctx.RunID(), nil)
		return nil
	}, "x", "y")

	g := NewGraph()
	g.AddNamed("trigger", trigger)
	g.AddNamed("p", p)
	g.AddNamed("r", r)
	g.AddNamed("q", q)
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toP"}, Endpoint{Name: "p"}))
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toR"}, Endpoint{Name: "r"}))
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q", Channel: "x"}))
	must(t, g.AddDependency(Endpoint{Name: "r"}, Endpoint{Name: "q", Channel: "y"}))

	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "trigger", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	if rec.len() != 0 {
		t.Fatalf("expected Q to never dispatch (starved), got %d invocations", rec.len())
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestFinishSentinelObservedAfterSubmissions wires an explicit listener on
// a component's reserved $finish channel and verifies it's observed
// exactly once, strictly after the component's own explicit submission.
func TestFinishSentinelObservedAfterSubmissions(t *testing.T) {
	var mu sync.Mutex
	var order []string
	note := func(ev string) {
		mu.Lock()
		order = append(order, ev)
		mu.Unlock()
	}
	rec := &callRecorder{}
	p := primarySingle(func(ctx *Context) error {
		note("submit")
		return ctx.Submit("", NewValue("data", "data"))
	})
	q := primarySink(func(ctx *Context) error {
		note("q")
		return nil
	})
	watcher := namedJoin(func(ctx *Context) error {
		note("finish")
		rec.record(ctx.RunID(), nil)
		return nil
	}, FinishChannel)

	g := NewGraph()
	g.AddNamed("p", p)
	g.AddNamed("q", q)
	g.AddNamed("watcher", watcher)
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "q"}))
	must(t, g.AddDependency(Endpoint{Name: "p", Channel: FinishChannel}, Endpoint{Name: "watcher", Channel: FinishChannel}))

	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{Entry: "p", OnComplete: onComplete}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	if rec.len() != 1 {
		t.Fatalf("expected $finish observed exactly once, got %d", rec.len())
	}
	if len(order) < 2 || order[0] != "submit" {
		t.Fatalf("expected the explicit submission to precede $finish, got %v", order)
	}
	finishIdx, submitIdx := -1, -1
	for i, ev := range order {
		if ev == "finish" {
			finishIdx = i
		}
		if ev == "submit" {
			submitIdx = i
		}
	}
	if finishIdx < submitIdx {
		t.Fatalf("expected $finish strictly after submit, got order %v", order)
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
