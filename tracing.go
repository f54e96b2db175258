package streamgraph

import "github.com/zoobzio/tracez"

// Span names and tags for runner dispatch tracing.
const (
	SpanDispatch = tracez.Key("runner.dispatch")
	SpanRun      = tracez.Key("runner.run")

	TagComponent = tracez.Tag("runner.component")
	TagRunID     = tracez.Tag("runner.run_id")
	TagSuccess   = tracez.Tag("runner.success")
	TagError     = tracez.Tag("runner.error")
)

func newTracer() *tracez.Tracer {
	return tracez.New()
}
