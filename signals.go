package streamgraph

import "github.com/zoobzio/capitan"

// Signal identifiers for engine events, named <subsystem>.<event>.
var (
	SignalRunStarted          = capitan.NewSignal("runner.run-started", "run started")
	SignalDispatch            = capitan.NewSignal("runner.dispatch", "node dispatched")
	SignalFinish              = capitan.NewSignal("runner.finish", "run finished")
	SignalStarved             = capitan.NewSignal("runner.starved", "run starved")
	SignalReservedChannel     = capitan.NewSignal("runner.reserved-channel", "reserved channel used")
	SignalUndeclaredChannel   = capitan.NewSignal("runner.undeclared-channel", "undeclared channel used")
	SignalPoisonedLock        = capitan.NewSignal("runner.poisoned-lock", "poisoned lock")
	SignalWorkerPoolSaturated = capitan.NewSignal("workerpool.saturated", "worker pool saturated")
	SignalWorkerPoolAcquired  = capitan.NewSignal("workerpool.acquired", "worker pool slot acquired")
	SignalWorkerPoolReleased  = capitan.NewSignal("workerpool.released", "worker pool slot released")
	SignalDebugComponent      = capitan.NewSignal("builtin.debug", "debug component event")
)

// Common field keys using capitan's primitive key types, avoiding custom
// struct serialization in the log path.
var (
	FieldComponent     = capitan.NewStringKey("component")
	FieldInvocationID  = capitan.NewStringKey("invocation_id")
	FieldChannel       = capitan.NewStringKey("channel")
	FieldRunID         = capitan.NewStringKey("run_id")
	FieldError         = capitan.NewStringKey("error")
	FieldTimestamp     = capitan.NewFloat64Key("timestamp")
	FieldWorkerCount   = capitan.NewIntKey("worker_count")
	FieldActiveWorkers = capitan.NewIntKey("active_workers")
	FieldBranchOrdinal = capitan.NewIntKey("branch_ordinal")
	FieldValue         = capitan.NewStringKey("value")
)
