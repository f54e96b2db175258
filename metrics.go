package streamgraph

import "github.com/zoobzio/metricz"

// Metric keys for runner observability, named <subsystem>.<noun>.<unit>.
const (
	MetricDispatchedTotal    = metricz.Key("runner.dispatched.total")
	MetricFinishedTotal      = metricz.Key("runner.finished.total")
	MetricStarvedTotal       = metricz.Key("runner.starved.total")
	MetricRunningInvocations = metricz.Key("runner.running.gauge")
	MetricPoolSaturations    = metricz.Key("workerpool.saturated.total")
)

// newMetrics builds a fresh, per-runner metricz.Registry. Each Runner gets
// its own registry (rather than a shared package-level one) so that
// multiple runners in the same process don't clobber each other's
// counters.
func newMetrics() *metricz.Registry {
	return metricz.New()
}
