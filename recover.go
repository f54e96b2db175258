package streamgraph

import (
	"context"

	"github.com/zoobzio/capitan"
)

// recoverComponentPanic recovers a panic inside a component's Run method
// (or a Defer continuation), converting it into a *PoisonedLockError
// rather than letting it crash the worker goroutine. The recovery policy
// is to log once (via capitan) and complete the invocation as a failure;
// the engine keeps serving other components.
func recoverComponentPanic(ctx context.Context, r *Runner, id RunnerComponentID, runID RunID, errp *error) {
	if rec := recover(); rec != nil {
		name := Name("<unknown>")
		if r != nil {
			if data := r.componentData(id); data != nil {
				name = data.name
			}
		}
		err := &PoisonedLockError{Component: name, RunID: runID.Clone(), Recovered: rec}
		if r != nil {
			capitan.Error(ctx, SignalPoisonedLock,
				FieldComponent.Field(name),
				FieldRunID.Field(runID.String()),
				FieldError.Field(err.Error()),
			)
		}
		*errp = err
	}
}
