package streamgraph

import "github.com/zoobzio/clockz"

// getClock returns clock if non-nil, otherwise the real wall clock. Every
// timestamped signal and deadline in the runner goes through this so tests
// can substitute clockz.NewFakeClock().
func getClock(clock clockz.Clock) clockz.Clock {
	if clock == nil {
		return clockz.RealClock
	}
	return clock
}
