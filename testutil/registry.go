package testutil

import (
	"context"

	"github.com/skosovsky/toolbridge"
)

// NewTestDispatcher discovers each session's tools and returns a Dispatcher
// over them in argument order, with panic recovery and the default error policy.
func NewTestDispatcher(ctx context.Context, sessions ...toolbridge.Session) *toolbridge.Dispatcher {
	executors := make([]*toolbridge.Executor, 0, len(sessions))
	for _, s := range sessions {
		executors = append(executors, toolbridge.NewExecutor(s, toolbridge.BuildCatalog(ctx, s),
			toolbridge.WithRecoverPanics(true)))
	}
	return toolbridge.NewDispatcher(executors)
}
