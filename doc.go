// Package streamgraph provides a dataflow pipeline engine: a runtime that
// executes user-defined components connected by named channels, where
// components may fan out (one input, many outputs), fan in (many inputs
// joined as a tree), broadcast across branches, and submit work recursively
// on a bounded worker pool.
//
// # Overview
//
// A pipeline is built as a graph of components wired by named channels
// (Graph, in graph.go). Compiling the graph produces an immutable Runner
// (compile.go, runner.go) that dispatches work to a bounded goroutine pool
// (workerpool.go). Values travel between components wrapped in a
// type-erased, shareable Value envelope (value.go). Components that accept
// more than one input accumulate partial joins in a per-component
// aggregation tree (inputtree.go) until every required slot is filled.
//
// # Core Concepts
//
//	type Component interface {
//	    Inputs() InputKind
//	    CanTake(name string) bool
//	    OutputKind(name string) OutputKind
//	    Run(ctx *Context) error
//	    Initialize(g *Graph, self ComponentID)
//	}
//
// Components declare the shape of input they expect (Primary, Named,
// MinTree, or FullTree — see InputKind) and the kind of each output channel
// (None, Single, or Multiple — see OutputKind). The engine is responsible
// for delivering exactly the declared shape: neither early nor late.
//
// # Quick Start
//
//	g := streamgraph.NewGraph()
//	if _, err := g.AddNamed("source", sourceComponent); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := g.AddNamed("sink", sinkComponent); err != nil {
//	    log.Fatal(err)
//	}
//	if err := g.AddDependency(
//	    streamgraph.Endpoint{Name: "source"},
//	    streamgraph.Endpoint{Name: "sink"},
//	); err != nil {
//	    log.Fatal(err)
//	}
//	_, runner, err := g.Compile()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handle, err := runner.Run(context.Background(), streamgraph.RunParams{
//	    Entry: "source",
//	    Args:  streamgraph.ArgSingle(streamgraph.NewValue("seed", 42)),
//	})
//
// # Observability
//
// The engine carries a consistent ambient stack:
// github.com/zoobzio/capitan for structured log signals,
// github.com/zoobzio/metricz for counters and gauges,
// github.com/zoobzio/tracez for spans around dispatch, and
// github.com/zoobzio/hookz for typed lifecycle events a host can subscribe
// to without coupling to the log sink. github.com/zoobzio/clockz backs every
// timestamp and deadline so tests can substitute a fake clock. Every
// RunHandle carries a github.com/google/uuid correlation id alongside the
// internal RunID, so a caller can tie a Run call back to its logs, metrics,
// and traces without depending on the monotonic invocation counter.
//
// # Configuration
//
// config.go decodes the ingestion-side boundary configuration format: a
// YAML document (gopkg.in/yaml.v3) with a "components" section this
// package turns into a Graph through an open FactoryRegistry (registry.go),
// plus "cameras"/"ntable"/"config" sections carried through as opaque
// yaml.Node passthroughs for a host's own out-of-core collaborators.
// cmd/streamgraphctl is a thin github.com/spf13/cobra CLI over config.go
// and this package's Compile/Run.
//
// # Non-goals
//
// No guarantee of per-component latency. No persistent state across process
// restarts. No global ordering of distinct top-level invocations — only
// intra-invocation ordering on a single channel. No isolation between
// components beyond the thread-safety of their own state. Computer-vision
// primitives, camera drivers, GUI, serialization formats, CLI, and the
// network-table client are out of scope for this package; see cmd/ for a
// thin boundary CLI and config.go for the boundary configuration shapes.
package streamgraph
