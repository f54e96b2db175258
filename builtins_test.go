package streamgraph

import (
	"context"
	"testing"
)

func TestDebugComponentConsumesWithoutOutput(t *testing.T) {
	for _, noisy := range []bool{true, false} {
		g := NewGraph()
		g.AddNamed("d", &DebugComponent{Name: "d", Noisy: noisy})
		_, runner, err := g.Compile()
		if err != nil {
			t.Fatalf("Compile (noisy=%v): %v", noisy, err)
		}
		onComplete, done := waitGroupComplete()
		if _, err := runner.Run(context.Background(), RunParams{
			Entry:      "d",
			Args:       ArgSingle(NewValue("x", 42)),
			OnComplete: onComplete,
		}); err != nil {
			t.Fatalf("Run (noisy=%v): %v", noisy, err)
		}
		waitDone(t, done)
		runner.Wait()
		if err := runner.AssertClean(); err != nil {
			t.Fatalf("noisy=%v: %v", noisy, err)
		}
	}
}

func TestPassthroughComponentEchoesInput(t *testing.T) {
	rec := &callRecorder{}
	sink := primarySink(func(ctx *Context) error {
		v, _ := ctx.Get("")
		n, _ := As[int](v)
		rec.record(ctx.RunID(), n)
		return nil
	})

	g := NewGraph()
	g.AddNamed("echo", &PassthroughComponent{})
	g.AddNamed("sink", sink)
	must(t, g.AddDependency(Endpoint{Name: "echo"}, Endpoint{Name: "sink"}))
	_, runner, err := g.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	onComplete, done := waitGroupComplete()
	if _, err := runner.Run(context.Background(), RunParams{
		Entry:      "echo",
		Args:       ArgSingle(NewValue("n", 42)),
		OnComplete: onComplete,
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitDone(t, done)
	runner.Wait()

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected the sink to run once, got %d", len(calls))
	}
	if calls[0].note != 42 {
		t.Errorf("sink observed %v, want 42", calls[0].note)
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}

// TestCollectComponentGathersFanOut: a trigger fans a 3-way Multiple into
// collect's "elem" slot while a Single producer anchors "ref"; both the
// "" and "sorted" outputs carry the three elements in run-id order.
func TestCollectComponentGathersFanOut(t *testing.T) {
	plain := &callRecorder{}
	sorted := &callRecorder{}
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
		for _, n := range []int{10, 20, 30} {
			if err := ctx.Submit("", NewValue("n", n)); err != nil {
				return err
			}
		}
		return nil
	})
	r := primarySingle(func(ctx *Context) error { return ctx.Submit("", NewValue("ref", "anchor")) })
	collectElems := func(rec *callRecorder) func(ctx *Context) error {
		return func(ctx *Context) error {
			v, _ := ctx.Get("")
			vals, err := As[[]Value](v)
			if err != nil {
				return err
			}
			out := make([]int, len(vals))
			for i, elem := range vals {
				out[i], _ = As[int](elem)
			}
			rec.record(ctx.RunID(), out)
			return nil
		}
	}

	g := NewGraph()
	g.AddNamed("trigger", trigger)
	g.AddNamed("p", p)
	g.AddNamed("r", r)
	g.AddNamed("collect", &CollectComponent{})
	g.AddNamed("plain", primarySink(collectElems(plain)))
	g.AddNamed("sorted", primarySink(collectElems(sorted)))
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toP"}, Endpoint{Name: "p"}))
	must(t, g.AddDependency(Endpoint{Name: "trigger", Channel: "toR"}, Endpoint{Name: "r"}))
	must(t, g.AddDependency(Endpoint{Name: "p"}, Endpoint{Name: "collect", Channel: "elem"}))
	must(t, g.AddDependency(Endpoint{Name: "r"}, Endpoint{Name: "collect", Channel: "ref"}))
	must(t, g.AddDependency(Endpoint{Name: "collect"}, Endpoint{Name: "plain"}))
	must(t, g.AddDependency(Endpoint{Name: "collect", Channel: "sorted"}, Endpoint{Name: "sorted"}))

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

	want := []int{10, 20, 30}
	for name, rec := range map[string]*callRecorder{"plain": plain, "sorted": sorted} {
		calls := rec.snapshot()
		if len(calls) != 1 {
			t.Fatalf("%s: expected one collected slice, got %d", name, len(calls))
		}
		got := calls[0].note.([]int)
		if len(got) != len(want) {
			t.Fatalf("%s: collected %v, want %v", name, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s: collected %v, want %v (run-id order)", name, got, want)
				break
			}
		}
	}
	if err := runner.AssertClean(); err != nil {
		t.Fatal(err)
	}
}
